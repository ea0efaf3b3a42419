// seed_matches.go — standalone script to parse a results file and seed
// matches into a ladder via the ladderd API.
//
// The results file has one match per line, oldest first. Teams are
// separated by ">" (earlier team beat later team) or "=" (draw), players
// within a team by ",":
//
//	alice > bob
//	alice,carol > bob,dave
//	alice = bob
//
// Usage:
//
//	go run scripts/seed_matches.go -file results.txt -api http://localhost:8700 -ladder office
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
)

type matchRequest struct {
	Outcome   [][]string `json:"outcome"`
	Ranks     []int      `json:"ranks,omitempty"`
	Timestamp int64      `json:"timestamp,omitempty"`
}

func main() {
	filePath := flag.String("file", "results.txt", "path to results file")
	apiURL := flag.String("api", "http://localhost:8700", "ladderd API base URL")
	ladder := flag.String("ladder", "", "ladder name (required)")
	token := flag.String("token", "", "admin token; when set, the ladder is created first")
	dryRun := flag.Bool("dry-run", false, "print matches without posting")
	flag.Parse()

	if *ladder == "" {
		log.Fatal("-ladder is required")
	}

	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatalf("open results file: %v", err)
	}
	defer f.Close()

	var matches []matchRequest
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m, err := parseLine(line)
		if err != nil {
			log.Fatalf("line %d: %v", lineNo, err)
		}
		matches = append(matches, m)
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read results file: %v", err)
	}

	if *dryRun {
		for _, m := range matches {
			out, _ := json.Marshal(m)
			fmt.Println(string(out))
		}
		fmt.Printf("parsed %d matches (dry run)\n", len(matches))
		return
	}

	if *token != "" {
		if err := createLadder(*apiURL, *ladder, *token); err != nil {
			log.Fatalf("create ladder: %v", err)
		}
	}

	base := fmt.Sprintf("%s/api/v1/ladders/%s/matches", *apiURL, *ladder)
	for i, m := range matches {
		body, _ := json.Marshal(m)
		resp, err := http.Post(base, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("match %d: %v", i+1, err)
		}
		if resp.StatusCode != http.StatusCreated {
			log.Fatalf("match %d: unexpected status %s", i+1, resp.Status)
		}
		resp.Body.Close()
	}
	fmt.Printf("seeded %d matches into ladder %q\n", len(matches), *ladder)
}

// parseLine turns "a,b > c = d" into an ordered outcome with ranks.
// A ">" separator advances the rank of everything after it; "=" keeps it.
func parseLine(line string) (matchRequest, error) {
	var m matchRequest
	rank := 0
	rest := line
	for {
		gt := strings.IndexAny(rest, ">=")
		var segment string
		if gt == -1 {
			segment = rest
		} else {
			segment = rest[:gt]
		}
		team := splitTeam(segment)
		if len(team) == 0 {
			return m, fmt.Errorf("empty team in %q", line)
		}
		m.Outcome = append(m.Outcome, team)
		m.Ranks = append(m.Ranks, rank)
		if gt == -1 {
			break
		}
		if rest[gt] == '>' {
			rank++
		}
		rest = rest[gt+1:]
	}
	if len(m.Outcome) < 2 {
		return m, fmt.Errorf("need at least 2 teams in %q", line)
	}
	return m, nil
}

func splitTeam(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func createLadder(apiURL, ladder, token string) error {
	url := fmt.Sprintf("%s/api/v1/ladders/%s/settings", apiURL, ladder)
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader("{}"))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
