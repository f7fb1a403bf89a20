package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/m3rciful/cxbot/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Keyboard selects one of the fixed reply-affordance layouts attached to an
// outbound message.
type Keyboard int

const (
	// KeyboardNone sends the message without touching the reply keyboard.
	KeyboardNone Keyboard = iota
	// KeyboardRoles shows the role selection menu.
	KeyboardRoles
	// KeyboardAnswers shows the A/B/C answer menu.
	KeyboardAnswers
)

// Markups holds the prebuilt reply keyboards for the fixed layouts.
type Markups struct {
	Roles   *tele.ReplyMarkup
	Answers *tele.ReplyMarkup
}

// api is the slice of *tele.Bot the client depends on.
type api interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Client performs a single outbound send with bounded retries. Transient
// failures are retried per Policy, flood waits sleep for exactly the hinted
// duration, fatal errors surface immediately. The client never touches
// session state.
type Client struct {
	policy  Policy
	markups Markups

	mu  sync.RWMutex
	bot api
}

// NewClient builds a client; the bot is bound later via Bind because it
// only exists once the Telegram runtime has started.
func NewClient(policy Policy, markups Markups) *Client {
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy()
	}
	return &Client{policy: policy, markups: markups}
}

// Bind wires the started bot into the client.
func (c *Client) Bind(b api) {
	c.mu.Lock()
	c.bot = b
	c.mu.Unlock()
}

func (c *Client) api() api {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bot
}

// Send delivers text to the user, attaching the requested keyboard layout.
// It blocks until the send succeeds, a fatal error occurs, the retry budget
// is exhausted, or the context is done. The last send error is returned
// unchanged on exhaustion.
func (c *Client) Send(ctx context.Context, userID int64, text string, kb Keyboard) error {
	bot := c.api()
	if bot == nil {
		return fmt.Errorf("delivery: client not bound to a bot")
	}

	var opts []interface{}
	switch kb {
	case KeyboardRoles:
		if c.markups.Roles != nil {
			opts = append(opts, c.markups.Roles)
		}
	case KeyboardAnswers:
		if c.markups.Answers != nil {
			opts = append(opts, c.markups.Answers)
		}
	}

	start := time.Now()
	recipient := tele.ChatID(userID)

	for attempt := 0; ; attempt++ {
		_, err := bot.Send(recipient, text, opts...)
		if err == nil {
			if attempt > 0 {
				logger.Info(ctx, "tg.delivery", "send.retry.success",
					slog.Int64("user_id", userID),
					slog.Int("attempt", attempt+1),
					slog.Duration("duration", logger.Took(start)),
				)
			}
			return nil
		}

		kind := Classify(err)
		if kind == KindFatal {
			logger.Error(ctx, "tg.delivery", "send.fail",
				slog.Int64("user_id", userID),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				slog.String("err_code", string(kind)),
				slog.Bool("retryable", false),
				slog.Int("attempts", attempt+1),
			)
			return err
		}

		delay, ok := c.policy.Backoff(attempt, err)
		if !ok {
			logger.Error(ctx, "tg.delivery", "send.exhausted",
				slog.Int64("user_id", userID),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				slog.String("err_code", string(kind)),
				slog.Int("attempts", attempt+1),
				slog.Duration("duration", logger.Took(start)),
			)
			return err
		}

		logger.Debug(ctx, "tg.delivery", "send.retry.backoff",
			slog.Int64("user_id", userID),
			slog.String("err_code", string(kind)),
			slog.Int("attempt", attempt+1),
			slog.Int64("backoff_ms", delay.Milliseconds()),
		)

		if serr := Sleep(ctx, delay); serr != nil {
			return serr
		}
	}
}
