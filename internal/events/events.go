package events

import "github.com/google/uuid"

type MatchRecordedEvent struct {
	EventID   uuid.UUID  `json:"event_id"`
	Ladder    string     `json:"ladder"`
	MatchID   int64      `json:"match_id"`
	Timestamp int64      `json:"timestamp"`
	Outcome   [][]string `json:"outcome"`
}

type MatchDeletedEvent struct {
	EventID uuid.UUID `json:"event_id"`
	Ladder  string    `json:"ladder"`
	MatchID int64     `json:"match_id"`
}

type SettingsChangedEvent struct {
	EventID uuid.UUID `json:"event_id"`
	Ladder  string    `json:"ladder"`
}

type RankingUpdatedEvent struct {
	EventID          uuid.UUID `json:"event_id"`
	Ladder           string    `json:"ladder"`
	MatchesProcessed int       `json:"matches_processed"`
	Watermark        int64     `json:"watermark"`
}

func NewRankingUpdated(ladder string, matches int, watermark int64) RankingUpdatedEvent {
	return RankingUpdatedEvent{
		EventID:          uuid.New(),
		Ladder:           ladder,
		MatchesProcessed: matches,
		Watermark:        watermark,
	}
}
