// Package checker coordinates refresh cycles: it calls the signal bridge,
// runs the decision engine, stamps and persists the result, and keeps the
// in-memory current flags that the rest of the application reads.
package checker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bizsim/agegate/internal/models"
	"github.com/bizsim/agegate/internal/policy"
	"github.com/bizsim/agegate/internal/signal"
	"github.com/bizsim/agegate/internal/store"
	"github.com/bizsim/agegate/internal/telemetry"
	"github.com/bizsim/agegate/internal/util/logger"
)

// State is the orchestrator's lifecycle phase, exposed for observability.
type State string

const (
	StateIdle     State = "idle"
	StateChecking State = "checking"
	StateRetrying State = "retrying"
)

// ErrTimeout is returned by CheckAsync when the overall deadline expires
// before a result arrives.
var ErrTimeout = errors.New("checker: timed out waiting for check result")

// CheckFailedError is returned by CheckAsync when the check ends in failure
// after retries are exhausted.
type CheckFailedError struct {
	Info models.ErrorInfo
}

func (e *CheckFailedError) Error() string {
	return fmt.Sprintf("checker: check failed with code %d: %s", e.Info.Code, e.Info.Message)
}

// Observer receives check outcomes. On an unrecoverable failure OnError fires
// first, then OnFlagsUpdated delivers the fallback decision (last trusted
// flags, or the fail-safe defaults) so observers are never left without one.
type Observer interface {
	OnFlagsUpdated(flags models.RestrictionFlags)
	OnError(info models.ErrorInfo)
}

// Options tune one Checker instance.
type Options struct {
	// SoftwareVersion stamps saved records; a version change invalidates
	// the cache on the next cold start.
	SoftwareVersion string

	// MaxAttempts bounds one refresh cycle including retries. Default 3.
	MaxAttempts int

	// RetryBase is the first backoff delay; attempt n waits base*2^(n-1).
	// Default 1s.
	RetryBase time.Duration

	// CacheMaxAge is the TTL applied when deciding whether a loaded record
	// is still trustworthy. Default 24h.
	CacheMaxAge time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = time.Second
	}
	if o.CacheMaxAge <= 0 {
		o.CacheMaxAge = 24 * time.Hour
	}
}

// Checker is an explicit, owned instance: whoever needs it receives it by
// reference, there is no package-level singleton. All mutation of the
// current flags and the busy gate is serialized by one mutex; check cycles
// themselves run on a single goroutine per cycle.
type Checker struct {
	bridge      signal.Bridge
	model       policy.Model
	fingerprint string
	opts        Options
	events      telemetry.Publisher

	// Injected for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	flagStore store.FlagStore
	state     State
	current   models.RestrictionFlags
	trusted   bool
	observers map[int]Observer
	nextObsID int
}

// New builds a Checker and performs the cold-start cache decision: a loaded
// record that passes the validity rules becomes the trusted current flags;
// anything else degrades to the restrictive fail-safe defaults.
func New(bridge signal.Bridge, flagStore store.FlagStore, model policy.Model, opts Options, events telemetry.Publisher) *Checker {
	opts.applyDefaults()
	model.Validate()
	if events == nil {
		events = telemetry.NopPublisher{}
	}

	c := &Checker{
		bridge:      bridge,
		model:       model,
		fingerprint: model.Fingerprint(),
		opts:        opts,
		events:      events,
		now:         time.Now,
		sleep:       sleepCtx,
		flagStore:   flagStore,
		state:       StateIdle,
		observers:   make(map[int]Observer),
	}
	c.restoreFromCache(context.Background())
	return c
}

func (c *Checker) restoreFromCache(ctx context.Context) {
	cached, err := c.flagStore.Load(ctx)
	if err != nil {
		logger.Warn("checker: cache load failed, using fail-safe defaults: %v", err)
	}
	if policy.IsValid(cached, c.opts.CacheMaxAge, c.fingerprint, c.opts.SoftwareVersion, c.now()) {
		age, _ := policy.AgeOf(cached, c.now())
		logger.Info("checker: restored trusted cache record (age %s)", age)
		c.current = *cached
		c.trusted = true
		return
	}
	if cached != nil {
		logger.Info("checker: discarding stale or mismatched cache record")
	}
	c.current = policy.FailSafeFlags(c.model)
	c.trusted = false
}

// CheckOnce triggers one refresh cycle. A call while a cycle is already
// running is a safe no-op, not a queued duplicate; the return value reports
// whether a new cycle started.
func (c *Checker) CheckOnce() bool {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		logger.Debug("checker: check already in progress, ignoring trigger")
		return false
	}
	c.state = StateChecking
	c.mu.Unlock()

	go c.run(context.Background())
	return true
}

// CheckAsync triggers a check (or latches onto the one in flight) and waits
// for its outcome, bounded by timeout and by ctx. A non-positive timeout
// means no deadline; the wait is then bounded by ctx alone. On failure it
// returns *CheckFailedError; the fallback decision remains available through
// CurrentFlags. Cancellation detaches the listener before returning, so a
// later unrelated check can never resolve this call.
func (c *Checker) CheckAsync(ctx context.Context, timeout time.Duration) (models.RestrictionFlags, error) {
	w := &waiter{done: make(chan waitResult, 1)}
	id := c.subscribe(w)
	defer c.unsubscribe(id)

	c.CheckOnce()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case r := <-w.done:
		if r.err != nil {
			return models.RestrictionFlags{}, r.err
		}
		return r.flags, nil
	case <-deadline:
		return models.RestrictionFlags{}, ErrTimeout
	case <-ctx.Done():
		return models.RestrictionFlags{}, fmt.Errorf("checker: check canceled: %w", ctx.Err())
	}
}

// CurrentFlags returns the decision the application should act on right now.
// Before any successful check this is the fail-safe default set.
func (c *Checker) CurrentFlags() models.RestrictionFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneFlags(c.current)
}

// IsChecking reports whether a refresh cycle is in flight.
func (c *Checker) IsChecking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateIdle
}

// CurrentState exposes the lifecycle phase for diagnostics endpoints.
func (c *Checker) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetStore swaps the persistence adapter. The in-memory flags are untouched;
// the next successful check writes through the new adapter.
func (c *Checker) SetStore(s store.FlagStore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flagStore = s
}

// ClearCache removes the persisted record and resets the in-memory decision
// to the fail-safe defaults.
func (c *Checker) ClearCache(ctx context.Context) error {
	c.mu.Lock()
	s := c.flagStore
	c.mu.Unlock()

	if err := s.Clear(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.current = policy.FailSafeFlags(c.model)
	c.trusted = false
	c.mu.Unlock()
	return nil
}

// Subscribe registers an observer and returns an unsubscribe function. The
// lifetime is the caller's to manage; unsubscribing is idempotent.
func (c *Checker) Subscribe(obs Observer) func() {
	id := c.subscribe(obs)
	return func() { c.unsubscribe(id) }
}

func (c *Checker) subscribe(obs Observer) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = obs
	return id
}

func (c *Checker) unsubscribe(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.observers, id)
}

// run executes one refresh cycle: bridge call, bounded exponential retries
// for transient failures, then either a fresh decision or the fallback path.
func (c *Checker) run(ctx context.Context) {
	start := c.now()
	var lastErr *signal.BridgeError

	for attempt := 1; ; attempt++ {
		raw, err := c.bridge.Check(ctx)
		if err == nil {
			c.finishSuccess(ctx, *raw, attempt, start)
			return
		}

		lastErr = asBridgeError(err)
		if !lastErr.Retryable || attempt >= c.opts.MaxAttempts {
			break
		}

		delay := c.opts.RetryBase << (attempt - 1)
		logger.Info("checker: transient bridge failure (code %d), retry %d/%d in %s",
			lastErr.Code, attempt, c.opts.MaxAttempts-1, delay)
		c.setState(StateRetrying)
		if err := c.sleep(ctx, delay); err != nil {
			break
		}
		c.setState(StateChecking)
	}

	c.finishFailure(*lastErr, start)
}

func (c *Checker) finishSuccess(ctx context.Context, raw models.RawSignal, attempts int, start time.Time) {
	flags := policy.Compute(raw, c.model)
	flags.Stamp(c.now(), c.fingerprint, c.opts.SoftwareVersion)
	// raw is dropped here; only the derived record survives.

	c.mu.Lock()
	s := c.flagStore
	c.mu.Unlock()
	if err := s.Save(ctx, flags); err != nil {
		// The fresh decision is still authoritative in memory; persistence
		// will be retried implicitly on the next successful check.
		logger.Warn("checker: failed to persist flags: %v", err)
	}

	c.mu.Lock()
	c.current = flags
	c.trusted = true
	c.state = StateIdle
	observers := c.snapshotObserversLocked()
	c.mu.Unlock()

	logger.Info("checker: check succeeded (attempts=%d, full_access=%v, denied=%v)",
		attempts, flags.FullAccessGranted, flags.AccessDenied)
	for _, obs := range observers {
		obs.OnFlagsUpdated(cloneFlags(flags))
	}
	c.events.PublishCheck(telemetry.CheckAuditEvent{
		Timestamp:   c.now(),
		Outcome:     "fresh",
		Attempts:    attempts,
		DurationMs:  c.now().Sub(start).Milliseconds(),
		FullAccess:  flags.FullAccessGranted,
		AdsEnabled:  flags.PersonalizedAdsEnabled,
		Denied:      flags.AccessDenied,
		NeedsVerify: flags.NeedsVerification,
		Version:     c.opts.SoftwareVersion,
	})
}

func (c *Checker) finishFailure(bridgeErr signal.BridgeError, start time.Time) {
	c.mu.Lock()
	c.state = StateIdle
	fallback := cloneFlags(c.current)
	fromCache := c.trusted
	observers := c.snapshotObserversLocked()
	c.mu.Unlock()

	logger.Error("checker: check failed permanently: code=%d msg=%s", bridgeErr.Code, bridgeErr.Message)
	info := bridgeErr.ErrorInfo()
	for _, obs := range observers {
		obs.OnError(info)
	}
	// Observers still get a usable decision: the last trusted flags, or the
	// fail-safe defaults when nothing trustworthy ever arrived.
	for _, obs := range observers {
		obs.OnFlagsUpdated(cloneFlags(fallback))
	}
	c.events.PublishCheck(telemetry.CheckAuditEvent{
		Timestamp:   c.now(),
		Outcome:     "fallback",
		FromCache:   fromCache,
		DurationMs:  c.now().Sub(start).Milliseconds(),
		ErrorCode:   info.Code,
		Retryable:   info.Retryable,
		FullAccess:  fallback.FullAccessGranted,
		AdsEnabled:  fallback.PersonalizedAdsEnabled,
		Denied:      fallback.AccessDenied,
		NeedsVerify: fallback.NeedsVerification,
		Version:     c.opts.SoftwareVersion,
	})
}

func (c *Checker) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Checker) snapshotObserversLocked() []Observer {
	out := make([]Observer, 0, len(c.observers))
	for _, obs := range c.observers {
		out = append(out, obs)
	}
	return out
}

// waiter is the one-shot subscription backing CheckAsync. The error wins
// because the failure path emits it first; the fallback flags that follow
// are ignored by the latched channel.
type waitResult struct {
	flags models.RestrictionFlags
	err   error
}

type waiter struct {
	done chan waitResult
}

func (w *waiter) OnFlagsUpdated(flags models.RestrictionFlags) {
	select {
	case w.done <- waitResult{flags: flags}:
	default:
	}
}

func (w *waiter) OnError(info models.ErrorInfo) {
	select {
	case w.done <- waitResult{err: &CheckFailedError{Info: info}}:
	default:
	}
}

func asBridgeError(err error) *signal.BridgeError {
	var bridgeErr *signal.BridgeError
	if errors.As(err, &bridgeErr) {
		return bridgeErr
	}
	return &signal.BridgeError{Code: signal.CodeInternal, Message: err.Error(), Retryable: false}
}

func cloneFlags(f models.RestrictionFlags) models.RestrictionFlags {
	out := f
	out.Features = make(map[string]bool, len(f.Features))
	for k, v := range f.Features {
		out.Features[k] = v
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
