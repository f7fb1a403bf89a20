package quiz

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/cxbot/core/logger"
	"github.com/m3rciful/cxbot/internal/delivery"
	"github.com/m3rciful/cxbot/internal/results"
	"github.com/m3rciful/cxbot/internal/session"

	"log/slog"
)

// Sender delivers one outbound message to a user. Implemented by
// delivery.Client; tests substitute fakes.
type Sender interface {
	Send(ctx context.Context, userID int64, text string, kb delivery.Keyboard) error
}

// Recorder accepts completed outcomes for detached, best-effort persistence.
type Recorder interface {
	Dispatch(o results.Outcome)
}

// Event is one inbound notification: the platform-issued identifier used
// for idempotency, the sender, and the raw text.
type Event struct {
	ID       int64
	UserID   int64
	Username string
	Text     string
}

type reply struct {
	text string
	kb   delivery.Keyboard
}

// Options wires an Engine.
type Options struct {
	Content *Content
	Store   session.Store
	Sender  Sender
	Results Recorder
	// Contact is the optional @handle appended to the final message.
	Contact string
	// RepromptWindow suppresses identical re-prompts sent to the same user
	// within this interval. Zero selects the 2s default.
	RepromptWindow time.Duration
	// Now is the clock, overridable in tests.
	Now func() time.Time
}

const defaultRepromptWindow = 2 * time.Second

// Engine advances per-user sessions through the fixed quiz states. Events
// for one user are processed strictly one at a time; different users run in
// parallel.
type Engine struct {
	content        *Content
	store          session.Store
	sender         Sender
	results        Recorder
	contact        string
	repromptWindow time.Duration
	now            func() time.Time

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewEngine validates options and constructs the engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Content == nil {
		return nil, fmt.Errorf("quiz engine: nil content")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("quiz engine: nil session store")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("quiz engine: nil sender")
	}
	window := opts.RepromptWindow
	if window <= 0 {
		window = defaultRepromptWindow
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		content:        opts.Content,
		store:          opts.Store,
		sender:         opts.Sender,
		results:        opts.Results,
		contact:        opts.Contact,
		repromptWindow: window,
		now:            now,
		locks:          make(map[int64]*sync.Mutex),
	}, nil
}

// lockUser serializes event processing per user id.
//
// The map keeps one mutex per user ever seen and is never pruned; at a few
// dozen bytes per entry that stays negligible well past this bot's audience.
func (e *Engine) lockUser(userID int64) func() {
	e.locksMu.Lock()
	mu, ok := e.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[userID] = mu
	}
	e.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// Handle processes one inbound event end to end: dedup check, state
// transition, outbound sends, detached outcome dispatch, then commit.
//
// Ordering is send-then-commit: the session (including last_event_id) is
// persisted only after every reply send succeeded, so a redelivered event
// retries the same transition. The accepted window is a duplicate send,
// never a duplicate skip.
func (e *Engine) Handle(ctx context.Context, ev Event) error {
	unlock := e.lockUser(ev.UserID)
	defer unlock()

	sess, err := e.store.Get(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("conversation: %w", err)
	}

	if !session.ShouldProcess(&sess, ev.ID) {
		logger.Debug(ctx, "service.quiz", "event.duplicate",
			slog.String("status", "skip"),
			slog.Int64("user_id", ev.UserID),
		)
		return nil
	}

	replies, outcome := e.step(ctx, &sess, ev)

	for _, r := range replies {
		if err := e.sender.Send(ctx, ev.UserID, r.text, r.kb); err != nil {
			return fmt.Errorf("conversation reply: %w", err)
		}
	}

	if outcome != nil {
		outcome.UserID = ev.UserID
		outcome.Username = ev.Username
		outcome.CompletedAt = e.now()
		if e.results != nil {
			e.results.Dispatch(*outcome)
		}
	}

	if verr := sess.Validate(QuestionsPerRole); verr != nil {
		logger.Warn(ctx, "service.quiz", "session.invariant",
			slog.Int64("user_id", ev.UserID),
			slog.String("err", verr.Error()),
		)
		sess.Reset()
	}

	if err := e.store.Put(ctx, ev.UserID, sess); err != nil {
		return fmt.Errorf("conversation: %w", err)
	}
	return nil
}

// step applies one transition to the session and returns the replies to
// send plus a non-nil outcome when the run completed. It performs no I/O.
func (e *Engine) step(ctx context.Context, sess *session.Session, ev Event) ([]reply, *results.Outcome) {
	text := strings.TrimSpace(ev.Text)

	// The exit family wins from every state and is idempotent.
	switch {
	case text == "/start":
		sess.Reset()
		return []reply{{msgChooseRole, delivery.KeyboardRoles}}, nil
	case text == "/cancel" || text == "/stop" || IsExit(text):
		sess.Reset()
		return []reply{{msgSessionEnded, delivery.KeyboardRoles}}, nil
	}

	switch sess.State {
	case session.StateIdle, session.StateChoosingRole:
		role, ok := e.content.RoleByLabel(text)
		if !ok {
			sess.State = session.StateChoosingRole
			return []reply{{msgChooseRole, delivery.KeyboardRoles}}, nil
		}
		sess.State = session.StateAsking
		sess.Role = role.Name
		sess.QuestionIndex = 0
		sess.ErrorCount = 0
		logger.Info(ctx, "service.quiz", "run.started",
			slog.Int64("user_id", ev.UserID),
			slog.String("role", role.Name),
		)
		return []reply{{role.Questions[0].Prompt, delivery.KeyboardAnswers}}, nil

	case session.StateAsking:
		role, ok := e.content.RoleByName(sess.Role)
		if !ok || sess.QuestionIndex < 0 || sess.QuestionIndex >= len(role.Questions) {
			// Stored progress no longer matches the content table.
			sess.Reset()
			return []reply{{msgChooseRoleFirst, delivery.KeyboardRoles}}, nil
		}

		if !IsAnswerToken(text) {
			now := e.now()
			if !sess.LastRepromptAt.IsZero() && now.Sub(sess.LastRepromptAt) < e.repromptWindow {
				logger.Debug(ctx, "service.quiz", "reprompt.suppressed",
					slog.String("status", "rate_limited"),
					slog.Int64("user_id", ev.UserID),
				)
				return nil, nil
			}
			sess.LastRepromptAt = now
			return []reply{{msgChooseAnswer, delivery.KeyboardAnswers}}, nil
		}

		if text != role.Questions[sess.QuestionIndex].Correct {
			sess.ErrorCount++
		}
		sess.QuestionIndex++

		if sess.QuestionIndex < len(role.Questions) {
			return []reply{{role.Questions[sess.QuestionIndex].Prompt, delivery.KeyboardAnswers}}, nil
		}

		correct := len(role.Questions) - sess.ErrorCount
		out := &results.Outcome{
			Role:    sess.Role,
			Correct: correct,
			Errors:  sess.ErrorCount,
		}
		logger.Info(ctx, "service.quiz", "run.completed",
			slog.Int64("user_id", ev.UserID),
			slog.String("role", sess.Role),
			slog.Int("correct", correct),
			slog.Int("errors", sess.ErrorCount),
		)
		msg := finalMessage(correct, sess.ErrorCount, e.contact)
		sess.Reset()
		return []reply{{msg, delivery.KeyboardRoles}}, out
	}

	sess.Reset()
	return []reply{{msgChooseRole, delivery.KeyboardRoles}}, nil
}
