package domain

// DayCount is the number of messages stored on one UTC day (YYYY-MM-DD).
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type Stats struct {
	Users     int        `json:"users"`
	Rooms     int        `json:"rooms"`
	Messages  int        `json:"messages"`
	Active24h int        `json:"active24h"`
	Week      []DayCount `json:"week"`
}
