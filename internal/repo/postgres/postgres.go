package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/livepoll/livepoll/internal/entity"
	"github.com/livepoll/livepoll/internal/repo"
)

// uniqueViolation is the postgres error code raised by the unique constraint
// on votes(poll_id, voter_id).
const uniqueViolation = "23505"

type Storage struct {
	db *sql.DB
}

func New(postgresURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// SavePoll inserts the poll and all of its options in one transaction, so a
// poll without its options is never observable.
func (s *Storage) SavePoll(ctx context.Context, poll entity.Poll) error {
	const op = "storage.postgres.SavePoll"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, repo.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	query := `INSERT INTO polls (id, question, creator_name, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, query, poll.ID, poll.Question, poll.CreatorName, poll.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w: %v", op, repo.ErrStorageUnavailable, err)
	}

	optionQuery := `INSERT INTO options (id, poll_id, text, position) VALUES ($1, $2, $3, $4)`
	for _, option := range poll.Options {
		if _, err := tx.ExecContext(ctx, optionQuery, option.ID, poll.ID, option.Text, option.Position); err != nil {
			return fmt.Errorf("%s: %w: %v", op, repo.ErrStorageUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w: %v", op, repo.ErrStorageUnavailable, err)
	}

	return nil
}

func (s *Storage) GetPollByID(ctx context.Context, id string) (entity.Poll, error) {
	const op = "storage.postgres.GetPollByID"

	query := `SELECT id, question, creator_name, created_at FROM polls WHERE id = $1`

	var poll entity.Poll
	err := s.db.QueryRowContext(ctx, query, id).Scan(&poll.ID, &poll.Question, &poll.CreatorName, &poll.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Poll{}, fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
		}
		return entity.Poll{}, fmt.Errorf("%s: %w: %v", op, repo.ErrStorageUnavailable, err)
	}

	options, err := s.optionsByPollID(ctx, id)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}
	poll.Options = options

	return poll, nil
}

func (s *Storage) GetPolls(ctx context.Context) ([]entity.Poll, error) {
	const op = "storage.postgres.GetPolls"

	query := `SELECT id, question, creator_name, created_at FROM polls ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, repo.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	polls := []entity.Poll{}
	for rows.Next() {
		var poll entity.Poll
		if err := rows.Scan(&poll.ID, &poll.Question, &poll.CreatorName, &poll.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		polls = append(polls, poll)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return polls, nil
}

// SaveVote relies on the unique constraint on (poll_id, voter_id) for the
// duplicate check, so concurrent votes from the same voter cannot both land.
func (s *Storage) SaveVote(ctx context.Context, vote entity.Vote) error {
	const op = "storage.postgres.SaveVote"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, repo.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	var exists bool
	pollQuery := `SELECT EXISTS (SELECT 1 FROM polls WHERE id = $1)`
	if err := tx.QueryRowContext(ctx, pollQuery, vote.PollID).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w: %v", op, repo.ErrStorageUnavailable, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}

	optionQuery := `SELECT EXISTS (SELECT 1 FROM options WHERE id = $1 AND poll_id = $2)`
	if err := tx.QueryRowContext(ctx, optionQuery, vote.OptionID, vote.PollID).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w: %v", op, repo.ErrStorageUnavailable, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, repo.ErrOptionNotFound)
	}

	insertQuery := `INSERT INTO votes (id, poll_id, option_id, voter_id, voted_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, insertQuery, vote.ID, vote.PollID, vote.OptionID, vote.VoterID, vote.VotedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", op, repo.ErrDuplicateVote)
		}
		return fmt.Errorf("%s: %w: %v", op, repo.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w: %v", op, repo.ErrStorageUnavailable, err)
	}

	return nil
}

func (s *Storage) CountVotesByPoll(ctx context.Context, pollID string) (map[string]int64, error) {
	const op = "storage.postgres.CountVotesByPoll"

	query := `SELECT option_id, COUNT(*) FROM votes WHERE poll_id = $1 GROUP BY option_id`

	rows, err := s.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, repo.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var optionID string
		var count int64
		if err := rows.Scan(&optionID, &count); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		counts[optionID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return counts, nil
}

func (s *Storage) optionsByPollID(ctx context.Context, pollID string) ([]entity.Option, error) {
	const op = "storage.postgres.optionsByPollID"

	query := `SELECT id, poll_id, text, position FROM options WHERE poll_id = $1 ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, repo.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var options []entity.Option
	for rows.Next() {
		var option entity.Option
		if err := rows.Scan(&option.ID, &option.PollID, &option.Text, &option.Position); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		options = append(options, option)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return options, nil
}
