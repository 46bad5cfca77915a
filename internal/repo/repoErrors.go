package repo

import "errors"

var (
	ErrPollNotFound       = errors.New("poll not found")
	ErrOptionNotFound     = errors.New("option not found")
	ErrDuplicateVote      = errors.New("duplicate vote")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
