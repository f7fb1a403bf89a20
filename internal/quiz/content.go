// Package quiz implements the content table and the conversation engine
// driving role selection, the question sequence, and result reporting.
package quiz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// QuestionsPerRole is the fixed length of every role's question sequence.
const QuestionsPerRole = 5

//go:embed content.yaml
var embeddedContent []byte

// Question pairs a fully formatted prompt (question text plus the A/B/C
// choice lines) with its answer key.
type Question struct {
	Prompt  string `yaml:"prompt"`
	Correct string `yaml:"correct"`
}

// Role is one quiz track: a bare name used for matching and reporting, the
// decorated keyboard button label, and the ordered question sequence.
type Role struct {
	Name      string     `yaml:"name"`
	Button    string     `yaml:"button"`
	Questions []Question `yaml:"questions"`
}

// Content is the read-only table consulted by the engine. It is loaded and
// validated once at startup and never mutated during a session.
type Content struct {
	Roles []Role `yaml:"roles"`
}

var answerTokens = map[string]struct{}{"A": {}, "B": {}, "C": {}}

// IsAnswerToken reports whether text is one of the fixed answer tokens.
func IsAnswerToken(text string) bool {
	_, ok := answerTokens[text]
	return ok
}

// LoadContent parses and validates the content table. An empty path selects
// the embedded default wording.
func LoadContent(path string) (*Content, error) {
	data := embeddedContent
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("quiz content: read %s: %w", path, err)
		}
	}

	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("quiz content: parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate enforces the table shape: three roles with unique names and
// button labels, exactly QuestionsPerRole entries each, nonempty prompts,
// and every answer key inside the fixed token set.
func (c *Content) Validate() error {
	if len(c.Roles) == 0 {
		return fmt.Errorf("quiz content: no roles defined")
	}
	seenNames := make(map[string]struct{}, len(c.Roles))
	seenButtons := make(map[string]struct{}, len(c.Roles))
	for _, r := range c.Roles {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("quiz content: role with empty name")
		}
		if strings.TrimSpace(r.Button) == "" {
			return fmt.Errorf("quiz content: role %q has no button label", r.Name)
		}
		if _, dup := seenNames[r.Name]; dup {
			return fmt.Errorf("quiz content: duplicate role %q", r.Name)
		}
		if _, dup := seenButtons[r.Button]; dup {
			return fmt.Errorf("quiz content: duplicate button %q", r.Button)
		}
		seenNames[r.Name] = struct{}{}
		seenButtons[r.Button] = struct{}{}

		if len(r.Questions) != QuestionsPerRole {
			return fmt.Errorf("quiz content: role %q has %d questions, want %d", r.Name, len(r.Questions), QuestionsPerRole)
		}
		for i, q := range r.Questions {
			if strings.TrimSpace(q.Prompt) == "" {
				return fmt.Errorf("quiz content: role %q question %d has empty prompt", r.Name, i)
			}
			if !IsAnswerToken(q.Correct) {
				return fmt.Errorf("quiz content: role %q question %d has invalid answer key %q", r.Name, i, q.Correct)
			}
		}
	}
	return nil
}

// RoleByLabel resolves user text to a role by exact match against the
// button label or the bare role name.
func (c *Content) RoleByLabel(text string) (*Role, bool) {
	for i := range c.Roles {
		if text == c.Roles[i].Button || text == c.Roles[i].Name {
			return &c.Roles[i], true
		}
	}
	return nil, false
}

// RoleByName resolves a stored role name back to its table entry.
func (c *Content) RoleByName(name string) (*Role, bool) {
	for i := range c.Roles {
		if name == c.Roles[i].Name {
			return &c.Roles[i], true
		}
	}
	return nil, false
}

// ButtonLabels returns the role button labels in table order.
func (c *Content) ButtonLabels() []string {
	labels := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		labels = append(labels, r.Button)
	}
	return labels
}
