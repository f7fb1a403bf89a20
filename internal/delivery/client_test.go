package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type fakeAPI struct {
	calls  int
	script []error

	lastTo   tele.Recipient
	lastText string
	lastOpts []interface{}
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.lastTo = to
	f.lastText, _ = what.(string)
	f.lastOpts = opts

	var err error
	if f.calls < len(f.script) {
		err = f.script[f.calls]
	}
	f.calls++
	if err != nil {
		return nil, err
	}
	return &tele.Message{}, nil
}

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		Delays:      []time.Duration{time.Millisecond},
	}
}

func TestClientSendRetriesTransientThenSucceeds(t *testing.T) {
	api := &fakeAPI{script: []error{timeoutError{}, timeoutError{}, nil}}
	c := NewClient(fastPolicy(5), Markups{})
	c.Bind(api)

	if err := c.Send(context.Background(), 42, "hello", KeyboardNone); err != nil {
		t.Fatalf("send: %v", err)
	}
	if api.calls != 3 {
		t.Fatalf("calls = %d, want 3", api.calls)
	}
	if api.lastTo != tele.ChatID(42) {
		t.Fatalf("recipient = %v, want ChatID(42)", api.lastTo)
	}
	if api.lastText != "hello" {
		t.Fatalf("text = %q", api.lastText)
	}
}

func TestClientSendFatalNoRetry(t *testing.T) {
	fatal := &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}
	api := &fakeAPI{script: []error{fatal}}
	c := NewClient(fastPolicy(5), Markups{})
	c.Bind(api)

	err := c.Send(context.Background(), 42, "hello", KeyboardNone)
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v, want the API error unchanged", err)
	}
	if api.calls != 1 {
		t.Fatalf("calls = %d, want exactly 1 for a fatal error", api.calls)
	}
}

func TestClientSendExhaustionReturnsLastError(t *testing.T) {
	api := &fakeAPI{script: []error{timeoutError{}, timeoutError{}, timeoutError{}}}
	c := NewClient(fastPolicy(3), Markups{})
	c.Bind(api)

	err := c.Send(context.Background(), 42, "hello", KeyboardNone)
	var nerr timeoutError
	if !errors.As(err, &nerr) {
		t.Fatalf("err = %v, want the last transport error unchanged", err)
	}
	if api.calls != 3 {
		t.Fatalf("calls = %d, want the full budget of 3", api.calls)
	}
}

func TestClientSendAttachesKeyboard(t *testing.T) {
	roles := &tele.ReplyMarkup{ResizeKeyboard: true}
	answers := &tele.ReplyMarkup{OneTimeKeyboard: true}
	api := &fakeAPI{}
	c := NewClient(fastPolicy(2), Markups{Roles: roles, Answers: answers})
	c.Bind(api)

	if err := c.Send(context.Background(), 1, "pick", KeyboardRoles); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(api.lastOpts) != 1 || api.lastOpts[0] != roles {
		t.Fatalf("opts = %v, want the roles markup", api.lastOpts)
	}

	if err := c.Send(context.Background(), 1, "answer", KeyboardAnswers); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(api.lastOpts) != 1 || api.lastOpts[0] != answers {
		t.Fatalf("opts = %v, want the answers markup", api.lastOpts)
	}

	if err := c.Send(context.Background(), 1, "plain", KeyboardNone); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(api.lastOpts) != 0 {
		t.Fatalf("opts = %v, want none", api.lastOpts)
	}
}

func TestClientSendUnbound(t *testing.T) {
	c := NewClient(fastPolicy(2), Markups{})
	if err := c.Send(context.Background(), 1, "x", KeyboardNone); err == nil {
		t.Fatal("expected an error before Bind")
	}
}

func TestClientSendContextCancelDuringBackoff(t *testing.T) {
	api := &fakeAPI{script: []error{timeoutError{}, timeoutError{}}}
	c := NewClient(Policy{MaxAttempts: 5, Delays: []time.Duration{time.Minute}}, Markups{})
	c.Bind(api)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Send(ctx, 1, "x", KeyboardNone) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send did not return after cancellation")
	}
}
