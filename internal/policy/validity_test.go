package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizsim/agegate/internal/models"
)

func stampedFlags(at time.Time, fingerprint, version string) *models.RestrictionFlags {
	f := &models.RestrictionFlags{Features: map[string]bool{}}
	f.Stamp(at, fingerprint, version)
	return f
}

func TestIsValid(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	maxAge := 24 * time.Hour
	fp := DefaultModel().Fingerprint()

	cases := []struct {
		name  string
		flags *models.RestrictionFlags
		want  bool
	}{
		{"nil record", nil, false},
		{"missing decision time", &models.RestrictionFlags{ConfigFingerprint: fp, SoftwareVersion: "1.2.0"}, false},
		{"fresh record", stampedFlags(now.Add(-time.Hour), fp, "1.2.0"), true},
		{"exactly at max age", stampedFlags(now.Add(-maxAge), fp, "1.2.0"), true},
		{"one second past max age", stampedFlags(now.Add(-maxAge-time.Second), fp, "1.2.0"), false},
		{"fingerprint mismatch", stampedFlags(now.Add(-time.Hour), "v1|ads=16|gambling:18:1", "1.2.0"), false},
		{"version mismatch", stampedFlags(now.Add(-time.Hour), fp, "1.1.0"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValid(tc.flags, maxAge, fp, "1.2.0", now))
		})
	}
}

func TestIsValidLegacyRecordsSkipMissingStamps(t *testing.T) {
	// Records written before fingerprint/version stamping existed are judged
	// on age alone when the caller passes empty stamps.
	now := time.Now()
	legacy := stampedFlags(now.Add(-time.Hour), "", "")

	assert.True(t, IsValid(legacy, 24*time.Hour, "", "", now))
	assert.False(t, IsValid(legacy, 24*time.Hour, DefaultModel().Fingerprint(), "", now))
}

func TestAgeOf(t *testing.T) {
	now := time.Now()

	_, ok := AgeOf(nil, now)
	assert.False(t, ok)

	_, ok = AgeOf(&models.RestrictionFlags{}, now)
	assert.False(t, ok)

	age, ok := AgeOf(stampedFlags(now.Add(-90*time.Minute), "fp", "v"), now)
	require.True(t, ok)
	assert.Equal(t, 90*time.Minute, age)
}

func TestFailSafeFlags(t *testing.T) {
	m := DefaultModel()
	flags := FailSafeFlags(m)

	assert.False(t, flags.FullAccessGranted)
	assert.False(t, flags.AccessDenied)
	assert.False(t, flags.PersonalizedAdsEnabled)
	assert.True(t, flags.NeedsVerification)
	require.Len(t, flags.Features, len(m.Features))
	for key, enabled := range flags.Features {
		assert.False(t, enabled, "feature %s must start disabled", key)
	}
	// Unstamped: the fail-safe must never look like a trustable cache record.
	assert.True(t, flags.DecisionTime.IsZero())
}
