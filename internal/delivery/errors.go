package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/m3rciful/cxbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// Kind classifies a send failure for retry decisions.
type Kind string

const (
	// KindFatal marks permanent rejections: malformed payloads, unknown
	// chats, API 4xx. Never retried.
	KindFatal Kind = "fatal"
	// KindTransport marks transient network failures and timeouts.
	KindTransport Kind = "transport"
	// KindRateLimited marks flood-wait rejections carrying an explicit
	// retry-after hint.
	KindRateLimited Kind = "rate_limited"
)

// Classify maps a send error onto its retry kind.
func Classify(err error) Kind {
	if err == nil {
		return KindFatal
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return KindRateLimited
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransport
	}
	if netutil.ShouldRetry(err) {
		return KindTransport
	}

	return KindFatal
}

// Retryable reports whether the error kind belongs to the closed retryable
// set (transport failures and rate limiting).
func Retryable(err error) bool {
	switch Classify(err) {
	case KindTransport, KindRateLimited:
		return true
	}
	return false
}

// RetryAfterHint extracts the server-directed wait duration from a
// flood-wait error, if present.
func RetryAfterHint(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	return 0, false
}
