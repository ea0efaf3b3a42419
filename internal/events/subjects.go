package events

const (
	StreamName   = "LADDER_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectMatchRecorded(ladder string) string  { return "ladders." + ladder + ".match.recorded" }
func SubjectMatchDeleted(ladder string) string   { return "ladders." + ladder + ".match.deleted" }
func SubjectSettingsChanged(ladder string) string { return "ladders." + ladder + ".settings.changed" }
func SubjectRankingUpdated(ladder string) string { return "ladders." + ladder + ".ranking.updated" }
