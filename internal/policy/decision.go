package policy

import "github.com/bizsim/agegate/internal/models"

// Compute derives restriction flags from a raw age signal and the threshold
// model. This is pure domain logic - no I/O, no side effects; the caller
// stamps the result with time, fingerprint, and version.
//
// NOT_APPLICABLE (no jurisdiction data in the platform's answer) is treated
// as full trust: outside a supported jurisdiction no restriction applies.
// That is a policy choice, distinct from the restrictive FailSafeFlags used
// before any answer exists at all.
func Compute(raw models.RawSignal, m Model) models.RestrictionFlags {
	flags := models.RestrictionFlags{
		Features: make(map[string]bool, len(m.Features)),
	}

	// A parent explicitly denied access: terminal, overrides everything.
	if raw.Status == models.StatusSupervisedApprovalDenied {
		flags.AccessDenied = true
		for _, f := range m.Features {
			flags.Features[f.Key] = false
		}
		return flags
	}

	noData := raw.Status == models.StatusNotApplicable
	isAdult := noData || raw.Status == models.StatusVerified

	flags.FullAccessGranted = isAdult
	for _, f := range m.Features {
		if f.RequiresAdult {
			flags.Features[f.Key] = isAdult
		} else {
			flags.Features[f.Key] = isAdult || !isUnder(raw, f.MinAge)
		}
	}
	flags.PersonalizedAdsEnabled = noData || !isUnder(raw, m.PersonalizedAdsMinAge)
	flags.NeedsVerification = raw.Status == models.StatusUnknown

	return flags
}

// isUnder reports whether the signal's age range is entirely below threshold.
// Absent age data never counts as under; the boundary itself (upper ==
// threshold) is not under.
func isUnder(raw models.RawSignal, threshold int) bool {
	return raw.HasAgeUpper() && raw.AgeUpper < threshold
}
