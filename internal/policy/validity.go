package policy

import (
	"time"

	"github.com/bizsim/agegate/internal/models"
)

// IsValid decides whether a loaded cache record may still be trusted.
//
// Checks run in order, any failure invalidates: record exists and carries a
// decision time, fingerprint matches, software version matches, record is not
// older than maxAge. A threshold or version change therefore invalidates
// immediately, before the TTL is even considered.
//
// Passing an empty currentFingerprint or currentVersion skips that check,
// reproducing the legacy age-only validation for caches written before those
// stamps existed. Real fingerprints are never empty (version-prefixed) and a
// real version tag is required by config validation.
func IsValid(f *models.RestrictionFlags, maxAge time.Duration, currentFingerprint, currentVersion string, now time.Time) bool {
	if f == nil || f.DecisionTime.IsZero() {
		return false
	}
	if currentFingerprint != "" && currentFingerprint != f.ConfigFingerprint {
		return false
	}
	if currentVersion != "" && currentVersion != f.SoftwareVersion {
		return false
	}
	return now.Sub(f.DecisionTime) <= maxAge
}

// AgeOf returns how old a cache record is, independent of any TTL bound.
// ok is false when the record is missing or carries no usable timestamp.
func AgeOf(f *models.RestrictionFlags, now time.Time) (time.Duration, bool) {
	if f == nil || f.DecisionTime.IsZero() {
		return 0, false
	}
	return now.Sub(f.DecisionTime), true
}

// FailSafeFlags is the most restrictive plausible state: everything off,
// verification required. Used only until a first real answer (fresh or
// cached) exists.
//
// Note the asymmetry with Compute's NOT_APPLICABLE branch: before any answer
// the system assumes a regulated child audience (COPPA fail-safe); after a
// real "no jurisdiction data" answer it assumes no restriction applies. Both
// are deliberate and must not be unified.
func FailSafeFlags(m Model) models.RestrictionFlags {
	flags := models.RestrictionFlags{
		NeedsVerification: true,
		Features:          make(map[string]bool, len(m.Features)),
	}
	for _, f := range m.Features {
		flags.Features[f.Key] = false
	}
	return flags
}
