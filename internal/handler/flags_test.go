package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizsim/agegate/internal/checker"
	"github.com/bizsim/agegate/internal/models"
	"github.com/bizsim/agegate/internal/policy"
	"github.com/bizsim/agegate/internal/signal"
	"github.com/bizsim/agegate/internal/store"
)

func newTestHandler(bridge signal.Bridge) *FlagsHandler {
	c := checker.New(bridge, store.NewPlain(store.NewMemoryKV()), policy.DefaultModel(), checker.Options{
		SoftwareVersion: "1.2.0",
	}, nil)
	return NewFlagsHandler(c)
}

func TestGetFlagsColdStart(t *testing.T) {
	h := newTestHandler(signal.NewFakeBridge())

	rec := httptest.NewRecorder()
	h.GetFlags(rec, httptest.NewRequest(http.MethodGet, "/v1/flags", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp flagsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Flags.NeedsVerification)
	assert.False(t, resp.Flags.FullAccessGranted)
	assert.Equal(t, checker.StateIdle, resp.State)
}

func TestTriggerCheckFireAndForget(t *testing.T) {
	h := newTestHandler(signal.NewFakeBridge().QueueSignal(models.RawSignal{
		Status: models.StatusVerified, AgeLower: 18, AgeUpper: 150,
	}))

	rec := httptest.NewRecorder()
	h.TriggerCheck(rec, httptest.NewRequest(http.MethodPost, "/v1/check", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp["started"])
}

func TestTriggerCheckWaitSuccess(t *testing.T) {
	h := newTestHandler(signal.NewFakeBridge().QueueSignal(models.RawSignal{
		Status: models.StatusVerified, AgeLower: 18, AgeUpper: 150,
	}))

	rec := httptest.NewRecorder()
	h.TriggerCheck(rec, httptest.NewRequest(http.MethodPost, "/v1/check?wait=2s", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp flagsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Flags.FullAccessGranted)
}

func TestTriggerCheckWaitFailure(t *testing.T) {
	h := newTestHandler(signal.NewFakeBridge().
		QueueError(signal.NewBridgeError(signal.CodeAPINotAvailable, "api missing")))

	rec := httptest.NewRecorder()
	h.TriggerCheck(rec, httptest.NewRequest(http.MethodPost, "/v1/check?wait=2s", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var resp struct {
		Error    models.ErrorInfo        `json:"error"`
		Fallback models.RestrictionFlags `json:"fallback"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, signal.CodeAPINotAvailable, resp.Error.Code)
	assert.True(t, resp.Fallback.NeedsVerification)
}

func TestTriggerCheckInvalidWait(t *testing.T) {
	h := newTestHandler(signal.NewFakeBridge())

	for _, wait := range []string{"soon", "-1s", "0"} {
		rec := httptest.NewRecorder()
		h.TriggerCheck(rec, httptest.NewRequest(http.MethodPost, "/v1/check?wait="+wait, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "wait=%s", wait)
	}
}

func TestClearCache(t *testing.T) {
	h := newTestHandler(signal.NewFakeBridge().QueueSignal(models.RawSignal{
		Status: models.StatusVerified, AgeLower: 18, AgeUpper: 150,
	}))

	// Populate first.
	rec := httptest.NewRecorder()
	h.TriggerCheck(rec, httptest.NewRequest(http.MethodPost, "/v1/check?wait=2s", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ClearCache(rec, httptest.NewRequest(http.MethodDelete, "/v1/cache", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.GetFlags(rec, httptest.NewRequest(http.MethodGet, "/v1/flags", nil))
	var resp flagsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Flags.FullAccessGranted)
	assert.True(t, resp.Flags.NeedsVerification)
}
