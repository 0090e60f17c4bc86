package signal

import (
	"encoding/json"

	"github.com/bizsim/agegate/internal/models"
)

// successPayload mirrors the JSON envelope the native bridge emits on
// success. Every field is nullable on the wire.
type successPayload struct {
	UserStatus *string `json:"userStatus"`
	AgeLower   *int    `json:"ageLower"`
	AgeUpper   *int    `json:"ageUpper"`
	InstallID  *string `json:"installId"`
	// Milliseconds since epoch of the most recent supervised approval.
	MostRecentApprovalDate *int64 `json:"mostRecentApprovalDate"`
}

// errorPayload mirrors the bridge's failure envelope.
type errorPayload struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	IsRetryable  bool   `json:"isRetryable"`
}

// ParseSuccessPayload decodes a bridge success message into a RawSignal.
// Malformed JSON is a permanent internal error; unknown status strings are
// forward-compatible and map to the least-trusting classification.
func ParseSuccessPayload(data []byte) (*models.RawSignal, error) {
	var p successPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, internalError("malformed bridge payload: %v", err)
	}

	raw := &models.RawSignal{
		Status:   mapStatus(p.UserStatus),
		AgeLower: models.AgeAbsent,
		AgeUpper: models.AgeAbsent,
	}
	if p.AgeLower != nil && *p.AgeLower >= 0 {
		raw.AgeLower = *p.AgeLower
	}
	if p.AgeUpper != nil && *p.AgeUpper >= 0 {
		raw.AgeUpper = *p.AgeUpper
	}
	if p.InstallID != nil {
		raw.InstallID = *p.InstallID
	}
	if p.MostRecentApprovalDate != nil {
		raw.ApprovalTimestampMS = *p.MostRecentApprovalDate
	}
	return raw, nil
}

// ParseErrorPayload decodes a bridge failure message. The API-absence code is
// forced permanent whatever the bridge claimed.
func ParseErrorPayload(data []byte) *BridgeError {
	var p errorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return internalError("malformed bridge error payload: %v", err)
	}
	retryable := p.IsRetryable
	if p.ErrorCode == CodeAPINotAvailable {
		retryable = false
	}
	return &BridgeError{Code: p.ErrorCode, Message: p.ErrorMessage, Retryable: retryable}
}

// mapStatus classifies the wire status string. A null status means the
// platform had no verification data for this install (outside jurisdiction).
// Unrecognized values are newer than this build and get the least-trusting
// classification.
func mapStatus(s *string) models.VerificationStatus {
	if s == nil || *s == "" {
		return models.StatusNotApplicable
	}
	switch models.VerificationStatus(*s) {
	case models.StatusVerified:
		return models.StatusVerified
	case models.StatusSupervised:
		return models.StatusSupervised
	case models.StatusSupervisedApprovalPending:
		return models.StatusSupervisedApprovalPending
	case models.StatusSupervisedApprovalDenied:
		return models.StatusSupervisedApprovalDenied
	case models.StatusUnknown:
		return models.StatusUnknown
	default:
		return models.StatusUnknown
	}
}
