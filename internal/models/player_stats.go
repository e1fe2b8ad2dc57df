package models

import "time"

// PlayerStats is one aggregate-stats row: a player's skill belief and
// lifetime counters within a single ranking store. Rows are created on
// first appearance with the configured prior and are only ever written
// by the approval transaction.
type PlayerStats struct {
	UserID       string         `json:"userId" db:"user_id"`
	Mu           float64        `json:"mu" db:"mu"`
	Sigma        float64        `json:"sigma" db:"sigma"`
	Games        int            `json:"games" db:"games"`
	Wins         int            `json:"wins" db:"wins"`
	First        int            `json:"first" db:"first"`
	SubbedIn     int            `json:"subbedIn" db:"subbed_in"`
	SubbedOut    int            `json:"subbedOut" db:"subbed_out"`
	Civs         map[string]int `json:"civs" db:"civs"`
	LastModified time.Time      `json:"lastModified" db:"last_modified"`
}

// LeaderboardEntry is one row of the ranked projection over a stats
// store.
type LeaderboardEntry struct {
	UserID string `json:"discordId"`
	Rating int    `json:"rating"`
	Games  int    `json:"gamesPlayed"`
	Wins   int    `json:"wins"`
	First  int    `json:"first"`
}
