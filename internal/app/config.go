// Package app wires configuration, infrastructure, and the Telegram runtime
// into the CX quiz bot.
package app

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	corecmd "github.com/m3rciful/cxbot/core/cmd"
	coreconfig "github.com/m3rciful/cxbot/core/config"
	coredatabase "github.com/m3rciful/cxbot/core/database"
	"github.com/m3rciful/cxbot/internal/results"
)

// QuizConfig holds quiz-specific settings.
type QuizConfig struct {
	// ContentPath optionally overrides the embedded content table.
	ContentPath string `yaml:"content_path" envconfig:"QUIZ_CONTENT_PATH"`
	// ContactUsername is the @handle appended to the final message; empty
	// drops the call-to-action line.
	ContactUsername string `yaml:"contact_username" envconfig:"CONTACT_USERNAME"`
	// RepromptWindowMS suppresses identical answer re-prompts within this
	// window; 0 -> default (2000).
	RepromptWindowMS int `yaml:"reprompt_window_ms" envconfig:"QUIZ_REPROMPT_WINDOW_MS"`
}

// HealthConfig configures the optional liveness listener.
type HealthConfig struct {
	Listen string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
}

// Config aggregates the core configuration with bot-specific sections.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config  `yaml:"database"`
	Quiz     QuizConfig           `yaml:"quiz"`
	Sheets   results.SheetsConfig `yaml:"sheets"`
	Health   HealthConfig         `yaml:"health"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads the YAML file, applies environment overrides, and
// validates the result.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if cfg.Quiz.RepromptWindowMS < 0 {
		return nil, fmt.Errorf("quiz.reprompt_window_ms must be >= 0")
	}
	return &cfg, nil
}
