package entity

// TallyEntry is the vote count for a single option. A tally lists every
// option of the poll in its original order, zero-vote options included.
type TallyEntry struct {
	OptionID string `json:"option_id"`
	Text     string `json:"text"`
	Count    int64  `json:"count"`
}
