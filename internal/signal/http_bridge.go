package signal

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bizsim/agegate/internal/models"
	"github.com/bizsim/agegate/internal/util/logger"
)

// HTTPBridgeConfig configures the HTTP front to the native bridge.
type HTTPBridgeConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// HTTPBridge queries an endpoint that fronts the platform age-signals
// service. A 200 carries the success payload; any other status carries the
// bridge's error envelope. Retry policy is the caller's job: one request per
// Check, exactly one result.
type HTTPBridge struct {
	cfg    HTTPBridgeConfig
	client *http.Client
}

func NewHTTPBridge(cfg HTTPBridgeConfig) *HTTPBridge {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPBridge{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (b *HTTPBridge) Check(ctx context.Context) (*models.RawSignal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.Endpoint, nil)
	if err != nil {
		return nil, internalError("build bridge request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		// Transport-level failures are transient by nature; reuse the top of
		// the vendor's retryable range.
		return nil, &BridgeError{Code: retryableMax, Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, &BridgeError{Code: retryableMax, Message: err.Error(), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		bridgeErr := ParseErrorPayload(body)
		logger.Debug("bridge returned error: code=%d retryable=%v", bridgeErr.Code, bridgeErr.Retryable)
		return nil, bridgeErr
	}
	return ParseSuccessPayload(body)
}
