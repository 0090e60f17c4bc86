// Package signal defines the contract to the platform age-signals bridge and
// the translation of its payloads into the internal model. The transport
// itself (native Play service call) lives outside this module; errors arrive
// already classified by the vendor's retryable flag, reproduced here.
package signal

import (
	"context"
	"fmt"

	"github.com/bizsim/agegate/internal/models"
)

// Vendor error codes. Negative codes in [retryableMin, retryableMax] are
// transient per the platform contract; everything else is permanent.
const (
	// CodeAPINotAvailable means the age-signals API does not exist on this
	// device. Retrying can never help, regardless of the generic range.
	CodeAPINotAvailable = -2

	// CodeInternal is used for bridge-side failures (payload parsing,
	// serialization), matching the native bridge's convention.
	CodeInternal = -100

	retryableMin = -8
	retryableMax = -1
)

// Bridge requests one age signal from the platform. Implementations deliver
// exactly one result per call: a RawSignal or a *BridgeError.
type Bridge interface {
	Check(ctx context.Context) (*models.RawSignal, error)
}

// BridgeFunc adapts a plain function to the Bridge interface.
type BridgeFunc func(ctx context.Context) (*models.RawSignal, error)

func (f BridgeFunc) Check(ctx context.Context) (*models.RawSignal, error) { return f(ctx) }

// BridgeError carries the vendor's error envelope.
type BridgeError struct {
	Code      int
	Message   string
	Retryable bool
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("age signals bridge error %d: %s", e.Code, e.Message)
}

// ErrorInfo converts to the observer-facing shape.
func (e *BridgeError) ErrorInfo() models.ErrorInfo {
	return models.ErrorInfo{Code: e.Code, Message: e.Message, Retryable: e.Retryable}
}

// IsRetryable classifies a vendor code: transient iff inside the closed
// retryable interval, except the API-absence code which is always permanent.
func IsRetryable(code int) bool {
	if code == CodeAPINotAvailable {
		return false
	}
	return code >= retryableMin && code <= retryableMax
}

// NewBridgeError builds a BridgeError with the code classified locally. Used
// by bridges whose transport does not carry an explicit retryable flag.
func NewBridgeError(code int, message string) *BridgeError {
	return &BridgeError{Code: code, Message: message, Retryable: IsRetryable(code)}
}

// internalError marks a permanent bridge-side failure such as a malformed
// payload.
func internalError(format string, args ...interface{}) *BridgeError {
	return &BridgeError{Code: CodeInternal, Message: fmt.Sprintf(format, args...), Retryable: false}
}
