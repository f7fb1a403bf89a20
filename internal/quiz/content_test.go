package quiz

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedContentIsValid(t *testing.T) {
	c, err := LoadContent("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Roles) != 3 {
		t.Fatalf("roles = %d, want 3", len(c.Roles))
	}
	for _, r := range c.Roles {
		if len(r.Questions) != QuestionsPerRole {
			t.Fatalf("role %q has %d questions", r.Name, len(r.Questions))
		}
	}
}

func TestLoadContentFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yaml")
	if err := os.WriteFile(path, embeddedContent, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := LoadContent(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Roles) != 3 {
		t.Fatalf("roles = %d, want 3", len(c.Roles))
	}

	if _, err := LoadContent(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file must fail")
	}
}

func TestValidateRejectsBrokenTables(t *testing.T) {
	valid := func() *Content {
		q := make([]Question, QuestionsPerRole)
		for i := range q {
			q[i] = Question{Prompt: "q?", Correct: "B"}
		}
		return &Content{Roles: []Role{
			{Name: "Лікар", Button: "🦷 Лікар", Questions: q},
		}}
	}

	cases := []struct {
		name  string
		mutate func(*Content)
	}{
		{"no_roles", func(c *Content) { c.Roles = nil }},
		{"empty_name", func(c *Content) { c.Roles[0].Name = " " }},
		{"empty_button", func(c *Content) { c.Roles[0].Button = "" }},
		{"short_sequence", func(c *Content) { c.Roles[0].Questions = c.Roles[0].Questions[:3] }},
		{"empty_prompt", func(c *Content) { c.Roles[0].Questions[2].Prompt = "" }},
		{"bad_answer_key", func(c *Content) { c.Roles[0].Questions[4].Correct = "D" }},
		{"lowercase_key", func(c *Content) { c.Roles[0].Questions[0].Correct = "b" }},
		{"duplicate_role", func(c *Content) { c.Roles = append(c.Roles, c.Roles[0]) }},
	}
	for _, tc := range cases {
		c := valid()
		tc.mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("baseline table must validate: %v", err)
	}
}

func TestRoleLookup(t *testing.T) {
	c, err := LoadContent("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if r, ok := c.RoleByLabel("🦷 Лікар"); !ok || r.Name != "Лікар" {
		t.Fatal("button label must resolve")
	}
	if r, ok := c.RoleByLabel("Лікар"); !ok || r.Name != "Лікар" {
		t.Fatal("bare name must resolve")
	}
	if _, ok := c.RoleByLabel("лікар"); ok {
		t.Fatal("matching is exact, not case-folded")
	}
	if _, ok := c.RoleByName("Лікар"); !ok {
		t.Fatal("stored role name must resolve")
	}

	labels := c.ButtonLabels()
	if len(labels) != 3 || labels[0] != "👩‍💼 Керівник" {
		t.Fatalf("labels = %v", labels)
	}
}

func TestIsAnswerToken(t *testing.T) {
	for _, ok := range []string{"A", "B", "C"} {
		if !IsAnswerToken(ok) {
			t.Errorf("%q must be an answer token", ok)
		}
	}
	for _, bad := range []string{"a", "D", "", "AB", "А"} { // the last is Cyrillic А
		if IsAnswerToken(bad) {
			t.Errorf("%q must not be an answer token", bad)
		}
	}
}
