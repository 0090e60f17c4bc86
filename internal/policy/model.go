package policy

import (
	"fmt"
	"strings"

	"github.com/bizsim/agegate/internal/util/logger"
)

// fingerprintVersion prefixes every fingerprint so the encoding itself can
// evolve without two schemes ever colliding.
const fingerprintVersion = "v1"

// Feature is one gated capability with its minimum-age threshold.
type Feature struct {
	Key           string `yaml:"key" json:"key"`
	Label         string `yaml:"label" json:"label"`
	MinAge        int    `yaml:"min_age" json:"min_age"`
	RequiresAdult bool   `yaml:"requires_adult" json:"requires_adult"`
}

// Model is the ordered threshold configuration the decision engine evaluates
// against. Order matters for the fingerprint, not for evaluation.
type Model struct {
	Features              []Feature `yaml:"features" json:"features"`
	PersonalizedAdsMinAge int       `yaml:"personalized_ads_min_age" json:"personalized_ads_min_age"`
}

// DefaultModel returns the shipped gate set. Two independent calls always
// produce identical fingerprints.
func DefaultModel() Model {
	return Model{
		Features: []Feature{
			{Key: "gambling", Label: "Simulated gambling", MinAge: 18, RequiresAdult: true},
			{Key: "social_chat", Label: "Social chat", MinAge: 13},
			{Key: "user_content", Label: "User generated content", MinAge: 13},
			{Key: "paid_purchases", Label: "Real money purchases", MinAge: 18},
		},
		PersonalizedAdsMinAge: 13,
	}
}

// Fingerprint encodes every threshold into an opaque equality token. Any
// change to any field changes the token; identical configurations always
// produce byte-identical tokens. It is never decoded. Keys are quoted so a
// key containing the delimiters cannot make two different models collide.
func (m Model) Fingerprint() string {
	var b strings.Builder
	b.WriteString(fingerprintVersion)
	fmt.Fprintf(&b, "|ads=%d", m.PersonalizedAdsMinAge)
	for _, f := range m.Features {
		adult := 0
		if f.RequiresAdult {
			adult = 1
		}
		fmt.Fprintf(&b, "|%q:%d:%d", f.Key, f.MinAge, adult)
	}
	return b.String()
}

// Validate logs configuration warnings for duplicate or empty feature keys.
// These are diagnostic only: a bad key just makes that feature unreachable by
// lookup, so the model stays usable.
func (m Model) Validate() []string {
	var warnings []string
	seen := make(map[string]bool, len(m.Features))
	for i, f := range m.Features {
		if f.Key == "" {
			warnings = append(warnings, fmt.Sprintf("feature %d has an empty key", i))
			continue
		}
		if seen[f.Key] {
			warnings = append(warnings, fmt.Sprintf("duplicate feature key %q", f.Key))
		}
		seen[f.Key] = true
	}
	for _, w := range warnings {
		logger.Warn("threshold model: %s", w)
	}
	return warnings
}
