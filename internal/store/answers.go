package store

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

// Answers holds the canned response lists. They are loaded once at startup
// from a YAML file; a missing file falls back to the built-in defaults.
type Answers struct {
	Test   []string `yaml:"test"`
	Prefix []string `yaml:"prefix"`
	Better []string `yaml:"better"`
	Invite []string `yaml:"invite"`
	Kick   []string `yaml:"kick"`
}

func defaultAnswers() *Answers {
	return &Answers{
		Test:   []string{"All systems nominal.", "Still here.", "Works on my machine."},
		Prefix: []string{"Yes?", "I'm listening.", "You called?", "Hm?"},
		Better: []string{"the first one", "the second one", "both", "neither, honestly"},
		Invite: []string{"Welcome aboard! 👋", "A new face! Hello!"},
		Kick:   []string{"One of us has left the building.", "Farewell! 👋"},
	}
}

// LoadAnswers reads the YAML answer lists from path. Empty path or a missing
// file yields the defaults; individual empty lists are backfilled.
func LoadAnswers(path string, logger *slog.Logger) (*Answers, error) {
	def := defaultAnswers()
	if path == "" {
		return def, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Debug("answers file does not exist, using defaults", "path", path)
		return def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read answers file: %w", err)
	}

	var a Answers
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse answers file %s: %w", path, err)
	}

	if len(a.Test) == 0 {
		a.Test = def.Test
	}
	if len(a.Prefix) == 0 {
		a.Prefix = def.Prefix
	}
	if len(a.Better) == 0 {
		a.Better = def.Better
	}
	if len(a.Invite) == 0 {
		a.Invite = def.Invite
	}
	if len(a.Kick) == 0 {
		a.Kick = def.Kick
	}

	logger.Info("loaded answers", "path", path)
	return &a, nil
}

// Pick returns a uniformly random element of list, or "" for an empty list.
func Pick(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[rand.Intn(len(list))]
}
