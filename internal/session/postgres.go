package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cxbot/core/logger"
	"log/slog"
)

type postgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore constructs a Store backed by the sessions table so
// in-flight quizzes survive a process restart.
func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

type sessionRow struct {
	UserID         int64        `db:"user_id"`
	State          string       `db:"state"`
	Role           string       `db:"role"`
	QuestionIndex  int          `db:"question_index"`
	ErrorCount     int          `db:"error_count"`
	LastEventID    int64        `db:"last_event_id"`
	LastRepromptAt sql.NullTime `db:"last_reprompt_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

const selectSessionQuery = `
SELECT user_id, state, role, question_index, error_count, last_event_id, last_reprompt_at, updated_at
FROM sessions
WHERE user_id = $1`

const upsertSessionQuery = `
INSERT INTO sessions (user_id, state, role, question_index, error_count, last_event_id, last_reprompt_at, updated_at)
VALUES (:user_id, :state, :role, :question_index, :error_count, :last_event_id, :last_reprompt_at, now())
ON CONFLICT (user_id) DO UPDATE SET
    state            = EXCLUDED.state,
    role             = EXCLUDED.role,
    question_index   = EXCLUDED.question_index,
    error_count      = EXCLUDED.error_count,
    last_event_id    = EXCLUDED.last_event_id,
    last_reprompt_at = EXCLUDED.last_reprompt_at,
    updated_at       = now()`

// Get loads the session for the user; unknown users get the initial session.
func (p *postgresStore) Get(ctx context.Context, userID int64) (Session, error) {
	var row sessionRow
	err := p.db.GetContext(ctx, &row, selectSessionQuery, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return New(), nil
	}
	if err != nil {
		logger.Error(ctx, "service.sessions", "session.get",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return Session{}, fmt.Errorf("session get: %w", err)
	}

	s := Session{
		State:         State(row.State),
		Role:          row.Role,
		QuestionIndex: row.QuestionIndex,
		ErrorCount:    row.ErrorCount,
		LastEventID:   row.LastEventID,
	}
	if row.LastRepromptAt.Valid {
		s.LastRepromptAt = row.LastRepromptAt.Time
	}
	return s, nil
}

// Put upserts the session row for the user.
func (p *postgresStore) Put(ctx context.Context, userID int64, s Session) error {
	row := sessionRow{
		UserID:        userID,
		State:         string(s.State),
		Role:          s.Role,
		QuestionIndex: s.QuestionIndex,
		ErrorCount:    s.ErrorCount,
		LastEventID:   s.LastEventID,
	}
	if !s.LastRepromptAt.IsZero() {
		row.LastRepromptAt = sql.NullTime{Time: s.LastRepromptAt, Valid: true}
	}

	if _, err := p.db.NamedExecContext(ctx, upsertSessionQuery, row); err != nil {
		logger.Error(ctx, "service.sessions", "session.put",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

// Len reports the number of stored sessions (diagnostics only).
func (p *postgresStore) Len() int {
	var n int
	if err := p.db.Get(&n, "SELECT count(*) FROM sessions"); err != nil {
		return -1
	}
	return n
}
