package entity

import "time"

// Poll is a question with a fixed, ordered set of options. The option set is
// immutable once the poll is persisted.
type Poll struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	CreatorName string    `json:"creator_name"`
	Options     []Option  `json:"options,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Option struct {
	ID       string `json:"id"`
	PollID   string `json:"poll_id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}
