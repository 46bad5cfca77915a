package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/livepoll/livepoll/internal/entity"
)

var ErrValidation = errors.New("validation error")

// Polls owns poll creation, vote recording and tally computation. Storage is
// injected so the same rules run against postgres in production and the
// in-memory store in tests.
type Polls struct {
	log         *slog.Logger
	pollStorage PollStorage
	voteStorage VoteStorage
	publisher   Publisher

	mu         sync.Mutex
	tallyLocks map[string]*sync.Mutex
}

type PollStorage interface {
	// SavePoll persists the poll and its options as one atomic unit.
	SavePoll(ctx context.Context, poll entity.Poll) error
	GetPollByID(ctx context.Context, id string) (entity.Poll, error)
	GetPolls(ctx context.Context) ([]entity.Poll, error)
}

type VoteStorage interface {
	// SaveVote must make the duplicate check and the insert atomic with
	// respect to concurrent votes on the same (pollID, voterID) pair.
	SaveVote(ctx context.Context, vote entity.Vote) error
	CountVotesByPoll(ctx context.Context, pollID string) (map[string]int64, error)
}

// Publisher fans events out to live subscribers. Implementations must not
// block; a vote response never waits on delivery.
type Publisher interface {
	PublishPollCreated(poll entity.Poll)
	PublishResultsUpdated(pollID string, tally []entity.TallyEntry)
}

func NewPolls(log *slog.Logger, pollStorage PollStorage, voteStorage VoteStorage, publisher Publisher) *Polls {
	return &Polls{
		log:         log,
		pollStorage: pollStorage,
		voteStorage: voteStorage,
		publisher:   publisher,
		tallyLocks:  make(map[string]*sync.Mutex),
	}
}

// CreatePoll validates the input, persists the poll with a fresh identifier
// and announces it to all live connections.
func (p *Polls) CreatePoll(ctx context.Context, question string, optionTexts []string, creator string) (entity.Poll, error) {
	const op = "Polls.CreatePoll"

	if strings.TrimSpace(question) == "" {
		return entity.Poll{}, fmt.Errorf("%w: question is empty", ErrValidation)
	}
	if strings.TrimSpace(creator) == "" {
		return entity.Poll{}, fmt.Errorf("%w: creator is empty", ErrValidation)
	}
	if len(optionTexts) < 2 {
		return entity.Poll{}, fmt.Errorf("%w: a poll needs at least 2 options", ErrValidation)
	}
	for _, text := range optionTexts {
		if strings.TrimSpace(text) == "" {
			return entity.Poll{}, fmt.Errorf("%w: option text is empty", ErrValidation)
		}
	}

	poll := entity.Poll{
		ID:          uuid.NewString(),
		Question:    question,
		CreatorName: creator,
		CreatedAt:   time.Now().UTC(),
	}
	for i, text := range optionTexts {
		poll.Options = append(poll.Options, entity.Option{
			ID:       uuid.NewString(),
			PollID:   poll.ID,
			Text:     text,
			Position: i,
		})
	}

	if err := p.pollStorage.SavePoll(ctx, poll); err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	p.log.Info("poll created", slog.String("pollID", poll.ID), slog.Int("options", len(poll.Options)))

	p.publisher.PublishPollCreated(poll)

	return poll, nil
}

func (p *Polls) GetPollByID(ctx context.Context, id string) (entity.Poll, error) {
	const op = "Polls.GetPollByID"

	poll, err := p.pollStorage.GetPollByID(ctx, id)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

func (p *Polls) GetPolls(ctx context.Context) ([]entity.Poll, error) {
	const op = "Polls.GetPolls"

	polls, err := p.pollStorage.GetPolls(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if polls == nil {
		// Keep the empty list serializing as [] whichever storage backs us.
		polls = []entity.Poll{}
	}

	return polls, nil
}

// CastVote records a single vote and returns the fresh tally. The voterID is
// an opaque string: a resolved identity or a caller-supplied name. Supplied
// names carry no anti-spoofing guarantee; that trust boundary belongs to the
// caller. The storage rejects a second vote from the same voter on the same
// poll, even when both votes are in flight at once.
func (p *Polls) CastVote(ctx context.Context, pollID, optionID, voterID string) (entity.Vote, []entity.TallyEntry, error) {
	const op = "Polls.CastVote"

	if strings.TrimSpace(voterID) == "" {
		return entity.Vote{}, nil, fmt.Errorf("%w: voter is empty", ErrValidation)
	}

	vote := entity.Vote{
		ID:       uuid.NewString(),
		PollID:   pollID,
		OptionID: optionID,
		VoterID:  voterID,
		VotedAt:  time.Now().UTC(),
	}

	if err := p.voteStorage.SaveVote(ctx, vote); err != nil {
		return entity.Vote{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	// The tally read and the publish stay under one per-poll lock: computed
	// later means published later, so a subscriber never sees an older tally
	// arrive after a newer one. Enqueueing is non-blocking, so the lock is
	// never held on a slow consumer.
	lock := p.tallyLock(pollID)
	lock.Lock()
	defer lock.Unlock()

	tally, err := p.ComputeTally(ctx, pollID)
	if err != nil {
		return entity.Vote{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	p.log.Info("vote recorded", slog.String("pollID", pollID), slog.String("optionID", optionID))

	p.publisher.PublishResultsUpdated(pollID, tally)

	return vote, tally, nil
}

func (p *Polls) tallyLock(pollID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.tallyLocks[pollID]
	if !ok {
		lock = &sync.Mutex{}
		p.tallyLocks[pollID] = lock
	}
	return lock
}

// ComputeTally is a pure read over the vote ledger: counts grouped by option,
// in the poll's original option order, zero-vote options included.
func (p *Polls) ComputeTally(ctx context.Context, pollID string) ([]entity.TallyEntry, error) {
	const op = "Polls.ComputeTally"

	poll, err := p.pollStorage.GetPollByID(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	counts, err := p.voteStorage.CountVotesByPoll(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tally := make([]entity.TallyEntry, 0, len(poll.Options))
	for _, option := range poll.Options {
		tally = append(tally, entity.TallyEntry{
			OptionID: option.ID,
			Text:     option.Text,
			Count:    counts[option.ID],
		})
	}

	return tally, nil
}
