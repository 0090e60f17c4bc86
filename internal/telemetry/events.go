package telemetry

import "time"

// CheckAuditEvent records the outcome of one check cycle. It carries only
// derived booleans and coarse labels: raw age bounds and the verification
// status never leave the process (data-minimization policy).
type CheckAuditEvent struct {
	Timestamp   time.Time `json:"@timestamp"`
	Outcome     string    `json:"outcome"` // fresh, fallback, failed
	FromCache   bool      `json:"from_cache"`
	Attempts    int       `json:"attempts"`
	DurationMs  int64     `json:"duration_ms"`
	ErrorCode   int       `json:"error_code,omitempty"`
	Retryable   bool      `json:"retryable,omitempty"`
	FullAccess  bool      `json:"full_access"`
	AdsEnabled  bool      `json:"ads_enabled"`
	Denied      bool      `json:"denied"`
	NeedsVerify bool      `json:"needs_verify"`
	Version     string    `json:"version,omitempty"`
}

// Publisher ships audit events to the analytics sink. Implementations must
// not block the check path.
type Publisher interface {
	PublishCheck(ev CheckAuditEvent)
}

// NopPublisher drops everything; used when telemetry is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishCheck(CheckAuditEvent) {}
