package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vaultpilot/vaultpilot/pkg/logger"
)

// PollState is the poller's position in its lifecycle.
type PollState int

const (
	StateIdle PollState = iota
	StatePolling
	StateResolved
	StateTimedOut
	StateFailed
	StateCancelled
)

func (s PollState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateResolved:
		return "resolved"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ErrCancelled is delivered when Stop is called before resolution.
var ErrCancelled = errors.New("device authorization cancelled")

// PollResult is the poller's single outcome.
type PollResult struct {
	Token *TokenResponse
	Err   error
}

// maxPollWindow caps how long a poller keeps trying.
const maxPollWindow = 5 * time.Minute

// checkFunc issues one status check against the token endpoint.
type checkFunc func(ctx context.Context) (*TokenResponse, error)

// Poller drives the device-flow token polling state machine. It
// resolves exactly once; Stop is idempotent and makes in-flight ticks
// no-ops.
type Poller struct {
	check    checkFunc
	interval time.Duration

	mu          sync.Mutex
	state       PollState
	timer       *time.Timer
	cancelled   bool
	resolved    bool
	attempts    int
	maxAttempts int
	done        chan PollResult
}

// NewPoller creates a poller that checks a flow's device authorization.
// The server-advertised interval is respected with a 3 second floor.
func NewPoller(flow *Flow, da *DeviceAuthorization) *Poller {
	interval := time.Duration(da.Interval) * time.Second
	if interval < 3*time.Second {
		interval = 3 * time.Second
	}
	check := func(ctx context.Context) (*TokenResponse, error) {
		return flow.CheckToken(ctx, da)
	}
	return newPoller(check, interval)
}

func newPoller(check checkFunc, interval time.Duration) *Poller {
	return &Poller{
		check:       check,
		interval:    interval,
		state:       StateIdle,
		maxAttempts: int(maxPollWindow / interval),
		done:        make(chan PollResult, 1),
	}
}

// State returns the poller's current state.
func (p *Poller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start begins polling and returns the channel the single result
// arrives on. Starting an already started poller returns the same
// channel.
func (p *Poller) Start(ctx context.Context) <-chan PollResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return p.done
	}
	p.state = StatePolling
	logger.InfoCF("auth", "Device authorization polling started",
		map[string]any{"interval": p.interval.String(), "max_attempts": p.maxAttempts})
	p.scheduleLocked(ctx)
	return p.done
}

// Stop cancels polling. Safe to call multiple times and after
// resolution; once called, no further state transition occurs.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancelled {
		return
	}
	p.cancelled = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.state == StatePolling || p.state == StateIdle {
		p.state = StateCancelled
		p.resolveLocked(PollResult{Err: ErrCancelled})
	}
}

// scheduleLocked arms the next tick. Callers hold p.mu. Nothing is
// scheduled after cancellation.
func (p *Poller) scheduleLocked(ctx context.Context) {
	if p.cancelled {
		return
	}
	p.timer = time.AfterFunc(p.interval, func() { p.tick(ctx) })
}

func (p *Poller) tick(ctx context.Context) {
	p.mu.Lock()
	if p.cancelled || p.state != StatePolling {
		p.mu.Unlock()
		return
	}
	p.attempts++
	if p.attempts > p.maxAttempts {
		p.state = StateTimedOut
		p.resolveLocked(PollResult{Err: fmt.Errorf("timed out waiting for authorization after %d attempts", p.attempts-1)})
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	tok, err := p.check(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled {
		// Stop raced the request; the result is discarded
		return
	}

	if err != nil {
		// Transient network failure, keep polling
		logger.WarnCF("auth", "Token check failed, retrying",
			map[string]any{"attempt": p.attempts, "error": err.Error()})
		p.scheduleLocked(ctx)
		return
	}

	switch tok.Error {
	case "":
		if tok.AccessToken == "" {
			p.state = StateFailed
			p.resolveLocked(PollResult{Err: fmt.Errorf("token response missing access_token")})
			return
		}
		p.state = StateResolved
		logger.InfoCF("auth", "Device authorization granted",
			map[string]any{"attempts": p.attempts})
		p.resolveLocked(PollResult{Token: tok})
	case "authorization_pending":
		p.scheduleLocked(ctx)
	case "slow_down":
		p.interval += 5 * time.Second
		logger.InfoCF("auth", "Server requested slower polling",
			map[string]any{"interval": p.interval.String()})
		p.scheduleLocked(ctx)
	case "expired_token":
		p.state = StateFailed
		p.resolveLocked(PollResult{Err: fmt.Errorf("device code expired, run the login command again")})
	case "access_denied":
		p.state = StateFailed
		p.resolveLocked(PollResult{Err: fmt.Errorf("authorization denied by user")})
	default:
		desc := tok.ErrorDescription
		if desc == "" {
			desc = tok.Error
		}
		p.state = StateFailed
		p.resolveLocked(PollResult{Err: fmt.Errorf("oauth error: %s", desc)})
	}
}

// resolveLocked delivers the single result. Callers hold p.mu.
func (p *Poller) resolveLocked(result PollResult) {
	if p.resolved {
		return
	}
	p.resolved = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.done <- result
}
