package models

import "time"

// VerificationStatus classifies the user's age-verification state as reported
// by the platform age-signals service.
type VerificationStatus string

const (
	StatusVerified                  VerificationStatus = "VERIFIED"
	StatusSupervised                VerificationStatus = "SUPERVISED"
	StatusSupervisedApprovalPending VerificationStatus = "SUPERVISED_APPROVAL_PENDING"
	StatusSupervisedApprovalDenied  VerificationStatus = "SUPERVISED_APPROVAL_DENIED"
	StatusUnknown                   VerificationStatus = "UNKNOWN"

	// StatusNotApplicable means the platform returned no verification data,
	// i.e. the install is outside a supported jurisdiction.
	StatusNotApplicable VerificationStatus = "NOT_APPLICABLE"
)

// AgeAbsent marks a missing age bound in a RawSignal.
const AgeAbsent = -1

// RawSignal is the one-shot result of a bridge check. It is consumed by the
// decision engine and discarded: it carries real age data and must never be
// persisted or shipped to telemetry. Deliberately no json tags.
type RawSignal struct {
	Status              VerificationStatus
	AgeLower            int // AgeAbsent when not provided
	AgeUpper            int // AgeAbsent when not provided
	InstallID           string
	ApprovalTimestampMS int64 // 0 when not provided
}

// HasAgeUpper reports whether the signal carries an upper age bound.
func (s RawSignal) HasAgeUpper() bool { return s.AgeUpper >= 0 }

// RestrictionFlags is the derived, persistable decision record. It contains
// only booleans and stamps - zero raw age data.
type RestrictionFlags struct {
	FullAccessGranted      bool            `json:"full_access_granted"`
	AccessDenied           bool            `json:"access_denied"`
	PersonalizedAdsEnabled bool            `json:"personalized_ads_enabled"`
	NeedsVerification      bool            `json:"needs_verification"`
	Features               map[string]bool `json:"features"`

	DecisionTime      time.Time `json:"decision_time"`
	ConfigFingerprint string    `json:"config_fingerprint"`
	SoftwareVersion   string    `json:"software_version"`
}

// FeatureEnabled looks up a gated feature, treating unknown keys as disabled.
func (f *RestrictionFlags) FeatureEnabled(key string) bool {
	if f == nil || f.Features == nil {
		return false
	}
	return f.Features[key]
}

// Stamp sets the cache-invalidation stamps on a freshly computed record.
func (f *RestrictionFlags) Stamp(at time.Time, fingerprint, version string) {
	f.DecisionTime = at
	f.ConfigFingerprint = fingerprint
	f.SoftwareVersion = version
}

// ErrorInfo is the observer-facing failure shape, mirroring the bridge's
// error envelope.
type ErrorInfo struct {
	Code      int    `json:"error_code"`
	Message   string `json:"error_message"`
	Retryable bool   `json:"is_retryable"`
}
