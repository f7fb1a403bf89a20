package quiz

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/cxbot/internal/delivery"
	"github.com/m3rciful/cxbot/internal/results"
	"github.com/m3rciful/cxbot/internal/session"
)

type sentMsg struct {
	userID int64
	text   string
	kb     delivery.Keyboard
}

type fakeSender struct {
	sends   []sentMsg
	failAt  int // 0-based send index to fail at; -1 disables
	failErr error
}

func newFakeSender() *fakeSender {
	return &fakeSender{failAt: -1}
}

func (f *fakeSender) Send(_ context.Context, userID int64, text string, kb delivery.Keyboard) error {
	if f.failAt >= 0 && len(f.sends) == f.failAt {
		return f.failErr
	}
	f.sends = append(f.sends, sentMsg{userID, text, kb})
	return nil
}

func (f *fakeSender) last(t *testing.T) sentMsg {
	t.Helper()
	if len(f.sends) == 0 {
		t.Fatal("no messages sent")
	}
	return f.sends[len(f.sends)-1]
}

type fakeRecorder struct {
	outcomes []results.Outcome
}

func (f *fakeRecorder) Dispatch(o results.Outcome) {
	f.outcomes = append(f.outcomes, o)
}

func testEngine(t *testing.T) (*Engine, *fakeSender, *fakeRecorder, session.Store) {
	t.Helper()
	content, err := LoadContent("")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	sender := newFakeSender()
	recorder := &fakeRecorder{}
	store := session.NewMemoryStore()
	engine, err := NewEngine(Options{
		Content: content,
		Store:   store,
		Sender:  sender,
		Results: recorder,
		Contact: "cx_expert",
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return engine, sender, recorder, store
}

// feed pushes a sequence of texts through the engine with increasing
// event ids starting at base.
func feed(t *testing.T, e *Engine, userID, base int64, texts ...string) {
	t.Helper()
	for i, text := range texts {
		ev := Event{ID: base + int64(i), UserID: userID, Username: "tester", Text: text}
		if err := e.Handle(context.Background(), ev); err != nil {
			t.Fatalf("handle %q: %v", text, err)
		}
	}
}

func TestFullRunRecordsOutcome(t *testing.T) {
	engine, sender, recorder, _ := testEngine(t)

	// The administrator key is B,B,B,A,B: answering B five times
	// gives one error.
	feed(t, engine, 7, 1, "/start", "💬 Адміністратор", "B", "B", "B", "B", "B")

	if len(recorder.outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(recorder.outcomes))
	}
	out := recorder.outcomes[0]
	if out.Role != "Адміністратор" || out.Correct != 4 || out.Errors != 1 {
		t.Fatalf("outcome = %+v, want Адміністратор 4/1", out)
	}
	if out.UserID != 7 || out.Username != "tester" {
		t.Fatalf("outcome identity = %d/%q", out.UserID, out.Username)
	}
	if out.CompletedAt.IsZero() {
		t.Fatal("outcome must carry a completion timestamp")
	}

	final := sender.last(t)
	if final.kb != delivery.KeyboardRoles {
		t.Fatal("final message must restore the role keyboard")
	}
	if !strings.Contains(final.text, "4 із 5") {
		t.Fatalf("final text = %q, want the 4/5 tally", final.text)
	}
	if !strings.Contains(final.text, "@cx_expert") {
		t.Fatalf("final text = %q, want the contact handle", final.text)
	}
}

func TestPerfectRunStrongVerdict(t *testing.T) {
	engine, sender, recorder, _ := testEngine(t)

	// Every Лікар answer is B.
	feed(t, engine, 8, 1, "/start", "🦷 Лікар", "B", "B", "B", "B", "B")

	if len(recorder.outcomes) != 1 || recorder.outcomes[0].Correct != 5 {
		t.Fatalf("outcomes = %+v, want one perfect run", recorder.outcomes)
	}
	if !strings.Contains(sender.last(t).text, "5 із 5") {
		t.Fatalf("final text = %q", sender.last(t).text)
	}
}

func TestTwoErrorsSwitchVerdict(t *testing.T) {
	engine, sender, _, _ := testEngine(t)

	// Лікар key is all B; two A answers produce two errors.
	feed(t, engine, 9, 1, "/start", "🦷 Лікар", "A", "A", "B", "B", "B")

	if !strings.Contains(sender.last(t).text, msgVerdictGaps[:20]) {
		t.Fatalf("final text = %q, want the critical verdict", sender.last(t).text)
	}
}

func TestDuplicateEventSendsOnce(t *testing.T) {
	engine, sender, _, _ := testEngine(t)

	ev := Event{ID: 50, UserID: 3, Text: "/start"}
	if err := engine.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := engine.Handle(context.Background(), ev); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(sender.sends) != 1 {
		t.Fatalf("sends = %d, want 1 for a redelivered event", len(sender.sends))
	}
}

func TestSendFailureLeavesStateUncommitted(t *testing.T) {
	engine, sender, _, store := testEngine(t)

	sender.failErr = errors.New("telegram unreachable")
	sender.failAt = 0

	ev := Event{ID: 60, UserID: 4, Text: "/start"}
	if err := engine.Handle(context.Background(), ev); err == nil {
		t.Fatal("expected send failure to surface")
	}

	s, err := store.Get(context.Background(), 4)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.LastEventID == 60 {
		t.Fatal("failed transition must not commit the event id")
	}

	// Redelivery after the transport recovers retries the same transition.
	sender.failAt = -1
	if err := engine.Handle(context.Background(), ev); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(sender.sends) != 1 {
		t.Fatalf("sends = %d, want 1 after recovery", len(sender.sends))
	}
	s, _ = store.Get(context.Background(), 4)
	if s.LastEventID != 60 || s.State != session.StateChoosingRole {
		t.Fatalf("session = %+v, want committed choosing_role", s)
	}
}

func TestExitFromEveryState(t *testing.T) {
	variants := []string{"🔚 Завершити", "завершити", "ЗАВЕРШИТИ", "  Завершити  ", "/cancel", "/stop"}

	for _, exit := range variants {
		engine, sender, recorder, store := testEngine(t)

		feed(t, engine, 5, 1, "/start", "👩‍💼 Керівник", "B", exit)

		if len(recorder.outcomes) != 0 {
			t.Fatalf("%q: exit must not record an outcome", exit)
		}
		last := sender.last(t)
		if last.text != msgSessionEnded || last.kb != delivery.KeyboardRoles {
			t.Fatalf("%q: last = %+v, want session-ended with role keyboard", exit, last)
		}
		s, _ := store.Get(context.Background(), 5)
		if s.State != session.StateChoosingRole || s.Role != "" || s.QuestionIndex != 0 {
			t.Fatalf("%q: session = %+v, want reset", exit, s)
		}
	}
}

func TestExitIsIdempotent(t *testing.T) {
	engine, sender, _, _ := testEngine(t)

	feed(t, engine, 6, 1, "завершити", "завершити")

	if len(sender.sends) != 2 {
		t.Fatalf("sends = %d, want 2", len(sender.sends))
	}
	for _, m := range sender.sends {
		if m.text != msgSessionEnded {
			t.Fatalf("text = %q, want session-ended both times", m.text)
		}
	}
}

func TestUnknownRoleReprompts(t *testing.T) {
	engine, sender, _, _ := testEngine(t)

	feed(t, engine, 10, 1, "/start", "щось не те")

	last := sender.last(t)
	if last.text != msgChooseRole || last.kb != delivery.KeyboardRoles {
		t.Fatalf("last = %+v, want the role prompt again", last)
	}
}

func TestInvalidAnswerRepromptSuppression(t *testing.T) {
	content, err := LoadContent("")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	sender := newFakeSender()
	store := session.NewMemoryStore()
	engine, err := NewEngine(Options{
		Content:        content,
		Store:          store,
		Sender:         sender,
		RepromptWindow: 2 * time.Second,
		Now:            clock,
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	feed(t, engine, 11, 1, "/start", "🦷 Лікар")
	base := len(sender.sends)

	feed(t, engine, 11, 10, "перша дурниця")
	if len(sender.sends) != base+1 {
		t.Fatalf("sends = %d, want one reprompt", len(sender.sends))
	}
	if sender.last(t).text != msgChooseAnswer {
		t.Fatalf("reprompt = %q", sender.last(t).text)
	}

	// Inside the window: silence.
	now = now.Add(time.Second)
	feed(t, engine, 11, 11, "друга дурниця")
	if len(sender.sends) != base+1 {
		t.Fatalf("sends = %d, suppression window ignored", len(sender.sends))
	}

	// Past the window: reprompt again.
	now = now.Add(2 * time.Second)
	feed(t, engine, 11, 12, "третя дурниця")
	if len(sender.sends) != base+2 {
		t.Fatalf("sends = %d, want a second reprompt", len(sender.sends))
	}

	// Progress is untouched by the noise.
	s, _ := store.Get(context.Background(), 11)
	if s.State != session.StateAsking || s.QuestionIndex != 0 {
		t.Fatalf("session = %+v, want still on question 0", s)
	}
}

func TestStartMidRunRestarts(t *testing.T) {
	engine, sender, recorder, store := testEngine(t)

	feed(t, engine, 12, 1, "/start", "🦷 Лікар", "B", "B", "/start")

	if len(recorder.outcomes) != 0 {
		t.Fatal("restart must not record an outcome")
	}
	last := sender.last(t)
	if last.text != msgChooseRole || last.kb != delivery.KeyboardRoles {
		t.Fatalf("last = %+v, want the role prompt", last)
	}
	s, _ := store.Get(context.Background(), 12)
	if s.State != session.StateChoosingRole || s.QuestionIndex != 0 || s.ErrorCount != 0 {
		t.Fatalf("session = %+v, want reset", s)
	}
}

func TestQuestionSequenceAndKeyboards(t *testing.T) {
	engine, sender, _, _ := testEngine(t)
	content := engine.content
	role, _ := content.RoleByName("Керівник")

	feed(t, engine, 13, 1, "/start", "👩‍💼 Керівник")
	if sender.last(t).text != role.Questions[0].Prompt {
		t.Fatalf("first prompt = %q", sender.last(t).text)
	}
	if sender.last(t).kb != delivery.KeyboardAnswers {
		t.Fatal("questions must show the answer keyboard")
	}

	feed(t, engine, 13, 3, "A")
	if sender.last(t).text != role.Questions[1].Prompt {
		t.Fatalf("second prompt = %q", sender.last(t).text)
	}
}

func TestRolesAreIsolatedAcrossUsers(t *testing.T) {
	engine, _, recorder, _ := testEngine(t)

	// Interleave two users; each outcome stays its own.
	feed(t, engine, 21, 1, "/start", "🦷 Лікар")
	feed(t, engine, 22, 1, "/start", "💬 Адміністратор")
	feed(t, engine, 21, 10, "B", "B", "B", "B", "B")
	feed(t, engine, 22, 10, "B", "B", "B", "B", "B")

	if len(recorder.outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(recorder.outcomes))
	}
	byUser := map[int64]results.Outcome{}
	for _, o := range recorder.outcomes {
		byUser[o.UserID] = o
	}
	if o := byUser[21]; o.Role != "Лікар" || o.Correct != 5 {
		t.Fatalf("user 21 outcome = %+v", o)
	}
	if o := byUser[22]; o.Role != "Адміністратор" || o.Correct != 4 {
		t.Fatalf("user 22 outcome = %+v", o)
	}
}
