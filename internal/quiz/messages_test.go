package quiz

import (
	"strings"
	"testing"
)

func TestIsExit(t *testing.T) {
	yes := []string{
		"завершити",
		"Завершити",
		"ЗАВЕРШИТИ",
		"🔚 Завершити",
		"🔚завершити",
		"  завершити  ",
		"хочу завершити",
	}
	for _, s := range yes {
		if !IsExit(s) {
			t.Errorf("%q must be an exit phrase", s)
		}
	}

	no := []string{
		"",
		"заверш",
		"завершитися пізніше",
		"stop",
		"B",
	}
	for _, s := range no {
		if IsExit(s) {
			t.Errorf("%q must not be an exit phrase", s)
		}
	}
}

func TestFinalMessageVerdicts(t *testing.T) {
	strong := finalMessage(5, 0, "")
	if !strings.Contains(strong, msgVerdictStrong) {
		t.Fatalf("0 errors: %q", strong)
	}
	alsoStrong := finalMessage(4, 1, "")
	if !strings.Contains(alsoStrong, msgVerdictStrong) {
		t.Fatalf("1 error stays on the strong verdict: %q", alsoStrong)
	}
	gaps := finalMessage(3, 2, "")
	if !strings.Contains(gaps, msgVerdictGaps) {
		t.Fatalf("2 errors: %q", gaps)
	}
	if !strings.Contains(gaps, "3 із 5") {
		t.Fatalf("tally missing: %q", gaps)
	}
}

func TestFinalMessageContact(t *testing.T) {
	withContact := finalMessage(5, 0, "cx_expert")
	if !strings.Contains(withContact, "@cx_expert") {
		t.Fatalf("contact missing: %q", withContact)
	}
	// A leading @ in the config must not double up.
	prefixed := finalMessage(5, 0, "@cx_expert")
	if strings.Contains(prefixed, "@@") {
		t.Fatalf("doubled handle: %q", prefixed)
	}
	plain := finalMessage(5, 0, "  ")
	if strings.Contains(plain, "@") {
		t.Fatalf("blank contact must drop the CTA: %q", plain)
	}
}
