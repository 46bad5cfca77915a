package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/livepoll/livepoll/internal/entity"
	"github.com/livepoll/livepoll/internal/repo"
)

// Storage keeps polls and votes in process memory behind a single mutex.
// It enforces the same contract as the postgres storage, including the
// one-vote-per-voter uniqueness, so tests and local runs behave identically.
type Storage struct {
	mu    sync.RWMutex
	polls map[string]entity.Poll
	order []string
	votes map[string]map[string]entity.Vote // pollID -> voterID -> vote
}

func New() *Storage {
	return &Storage{
		polls: make(map[string]entity.Poll),
		votes: make(map[string]map[string]entity.Vote),
	}
}

func (s *Storage) SavePoll(ctx context.Context, poll entity.Poll) error {
	const op = "storage.memory.SavePoll"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.polls[poll.ID]; ok {
		return fmt.Errorf("%s: poll %s already exists", op, poll.ID)
	}

	s.polls[poll.ID] = clonePoll(poll)
	s.order = append(s.order, poll.ID)
	s.votes[poll.ID] = make(map[string]entity.Vote)

	return nil
}

func (s *Storage) GetPollByID(ctx context.Context, id string) (entity.Poll, error) {
	const op = "storage.memory.GetPollByID"

	s.mu.RLock()
	defer s.mu.RUnlock()

	poll, ok := s.polls[id]
	if !ok {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}

	return clonePoll(poll), nil
}

func (s *Storage) GetPolls(ctx context.Context) ([]entity.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	polls := make([]entity.Poll, 0, len(s.order))
	for _, id := range s.order {
		polls = append(polls, clonePoll(s.polls[id]))
	}

	return polls, nil
}

// SaveVote performs the duplicate check and the insert under one lock, which
// is the in-memory equivalent of the unique constraint on (poll_id, voter_id).
func (s *Storage) SaveVote(ctx context.Context, vote entity.Vote) error {
	const op = "storage.memory.SaveVote"

	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[vote.PollID]
	if !ok {
		return fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}

	found := false
	for _, option := range poll.Options {
		if option.ID == vote.OptionID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%s: %w", op, repo.ErrOptionNotFound)
	}

	if _, ok := s.votes[vote.PollID][vote.VoterID]; ok {
		return fmt.Errorf("%s: %w", op, repo.ErrDuplicateVote)
	}

	s.votes[vote.PollID][vote.VoterID] = vote

	return nil
}

func (s *Storage) CountVotesByPoll(ctx context.Context, pollID string) (map[string]int64, error) {
	const op = "storage.memory.CountVotesByPoll"

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.polls[pollID]; !ok {
		return nil, fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}

	counts := make(map[string]int64)
	for _, vote := range s.votes[pollID] {
		counts[vote.OptionID]++
	}

	return counts, nil
}

func clonePoll(poll entity.Poll) entity.Poll {
	cloned := poll
	cloned.Options = make([]entity.Option, len(poll.Options))
	copy(cloned.Options, poll.Options)
	return cloned
}
