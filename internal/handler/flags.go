package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/bizsim/agegate/internal/checker"
	"github.com/bizsim/agegate/internal/models"
	"github.com/bizsim/agegate/internal/util/logger"
)

// FlagsHandler exposes the checker over HTTP for the host application.
type FlagsHandler struct {
	checker *checker.Checker
}

func NewFlagsHandler(c *checker.Checker) *FlagsHandler {
	return &FlagsHandler{checker: c}
}

type flagsResponse struct {
	Flags    models.RestrictionFlags `json:"flags"`
	Checking bool                    `json:"checking"`
	State    checker.State           `json:"state"`
}

// GetFlags returns the current decision. This may be the fail-safe default
// set when no trusted answer exists yet.
func (h *FlagsHandler) GetFlags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, flagsResponse{
		Flags:    h.checker.CurrentFlags(),
		Checking: h.checker.IsChecking(),
		State:    h.checker.CurrentState(),
	})
}

// TriggerCheck starts a refresh cycle. Without a wait parameter it returns
// 202 immediately; with ?wait=10s it blocks for the outcome and returns the
// resulting flags, 504 on timeout, or 502 on an exhausted-retries failure.
func (h *FlagsHandler) TriggerCheck(w http.ResponseWriter, r *http.Request) {
	waitParam := r.URL.Query().Get("wait")
	if waitParam == "" {
		started := h.checker.CheckOnce()
		writeJSON(w, http.StatusAccepted, map[string]any{
			"started":          started,
			"already_checking": !started,
		})
		return
	}

	wait, err := time.ParseDuration(waitParam)
	if err != nil || wait <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid wait duration")
		return
	}

	flags, err := h.checker.CheckAsync(r.Context(), wait)
	if err != nil {
		var failed *checker.CheckFailedError
		switch {
		case errors.Is(err, checker.ErrTimeout):
			writeJSONError(w, http.StatusGatewayTimeout, "check did not complete in time")
		case errors.As(err, &failed):
			// The fallback decision is still available via GET /v1/flags.
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":    failed.Info,
				"fallback": h.checker.CurrentFlags(),
			})
		default:
			writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, flagsResponse{
		Flags:    flags,
		Checking: h.checker.IsChecking(),
		State:    h.checker.CurrentState(),
	})
}

// ClearCache drops the persisted record and resets the in-memory decision to
// the fail-safe defaults. Admin-only.
func (h *FlagsHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.ClearCache(r.Context()); err != nil {
		logger.Error("cache clear failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "cache clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}
