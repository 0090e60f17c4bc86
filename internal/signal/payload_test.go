package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizsim/agegate/internal/models"
)

func TestParseSuccessPayloadFull(t *testing.T) {
	raw, err := ParseSuccessPayload([]byte(`{
		"userStatus": "SUPERVISED",
		"ageLower": 12,
		"ageUpper": 14,
		"installId": "install-abc",
		"mostRecentApprovalDate": 1756300000000
	}`))
	require.NoError(t, err)

	assert.Equal(t, models.StatusSupervised, raw.Status)
	assert.Equal(t, 12, raw.AgeLower)
	assert.Equal(t, 14, raw.AgeUpper)
	assert.True(t, raw.HasAgeUpper())
	assert.Equal(t, "install-abc", raw.InstallID)
	assert.Equal(t, int64(1756300000000), raw.ApprovalTimestampMS)
}

func TestParseSuccessPayloadNullFields(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		wantStatus models.VerificationStatus
	}{
		{"null status means no jurisdiction data", `{"userStatus": null}`, models.StatusNotApplicable},
		{"absent status means no jurisdiction data", `{}`, models.StatusNotApplicable},
		{"empty status means no jurisdiction data", `{"userStatus": ""}`, models.StatusNotApplicable},
		{"unknown status string maps to unknown", `{"userStatus": "SUPERVISED_V2"}`, models.StatusUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := ParseSuccessPayload([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, raw.Status)
			assert.Equal(t, models.AgeAbsent, raw.AgeLower)
			assert.Equal(t, models.AgeAbsent, raw.AgeUpper)
			assert.False(t, raw.HasAgeUpper())
		})
	}
}

func TestParseSuccessPayloadNegativeAges(t *testing.T) {
	raw, err := ParseSuccessPayload([]byte(`{"userStatus": "VERIFIED", "ageLower": -5, "ageUpper": -1}`))
	require.NoError(t, err)
	assert.Equal(t, models.AgeAbsent, raw.AgeLower)
	assert.Equal(t, models.AgeAbsent, raw.AgeUpper)
}

func TestParseSuccessPayloadMalformed(t *testing.T) {
	_, err := ParseSuccessPayload([]byte(`{not json`))
	var bridgeErr *BridgeError
	require.ErrorAs(t, err, &bridgeErr)
	assert.Equal(t, CodeInternal, bridgeErr.Code)
	assert.False(t, bridgeErr.Retryable)
}

func TestParseErrorPayload(t *testing.T) {
	bridgeErr := ParseErrorPayload([]byte(`{"errorCode": -5, "errorMessage": "service busy", "isRetryable": true}`))
	assert.Equal(t, -5, bridgeErr.Code)
	assert.Equal(t, "service busy", bridgeErr.Message)
	assert.True(t, bridgeErr.Retryable)
}

func TestParseErrorPayloadAPIAbsenceForcedPermanent(t *testing.T) {
	// Even if the bridge claims retryable, a missing API can never recover.
	bridgeErr := ParseErrorPayload([]byte(`{"errorCode": -2, "errorMessage": "api not available", "isRetryable": true}`))
	assert.Equal(t, CodeAPINotAvailable, bridgeErr.Code)
	assert.False(t, bridgeErr.Retryable)
}

func TestParseErrorPayloadMalformed(t *testing.T) {
	bridgeErr := ParseErrorPayload([]byte(`<html>`))
	assert.Equal(t, CodeInternal, bridgeErr.Code)
	assert.False(t, bridgeErr.Retryable)
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{-1, true},
		{-8, true},
		{-5, true},
		{-2, false}, // API absence, carved out of the transient range
		{-9, false},
		{0, false},
		{1, false},
		{CodeInternal, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsRetryable(tc.code), "code %d", tc.code)
	}
}

func TestNewBridgeErrorClassifies(t *testing.T) {
	assert.True(t, NewBridgeError(-3, "flaky").Retryable)
	assert.False(t, NewBridgeError(CodeAPINotAvailable, "absent").Retryable)
}
