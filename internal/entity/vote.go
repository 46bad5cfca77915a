package entity

import "time"

// Vote records one voter's choice for a poll. Votes are written once and
// never updated or deleted; tallies are always derived from them.
type Vote struct {
	ID       string    `json:"id"`
	PollID   string    `json:"poll_id"`
	OptionID string    `json:"option_id"`
	VoterID  string    `json:"voter_id"`
	VotedAt  time.Time `json:"voted_at"`
}
