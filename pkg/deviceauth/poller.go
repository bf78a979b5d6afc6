package deviceauth

import (
	"context"
	"errors"
	"time"

	loggerpkg "github.com/minhyannv/ai-cli/pkg/logger"
)

// SlowDownStep is added to the polling interval on every slow_down reply.
const SlowDownStep = 5 * time.Second

// State is the poller's view of the authorization request.
type State string

const (
	StatePending State = "pending"
	StateSlowed  State = "slowed"
	StateDenied  State = "denied"
	StateExpired State = "expired"
	StateGranted State = "granted"
)

// Exchanger performs a single device token request.
type Exchanger interface {
	Exchange(ctx context.Context, deviceCode string) (*TokenResponse, error)
}

// Poller repeatedly exchanges a device code until the server grants or
// rejects it.
type Poller struct {
	Exchanger Exchanger
	// Interval is the initial wait before each request. Defaults to DefaultInterval.
	Interval time.Duration
	// ExpiresIn bounds the total time spent waiting. Zero disables the bound.
	ExpiresIn time.Duration
	// OnTick is called after every request with its 1-based attempt number.
	OnTick func(attempt int, state State)
	Logger loggerpkg.Logger
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Poll blocks until a token is granted or the flow fails. Network failures
// are not retried.
func (p *Poller) Poll(ctx context.Context, deviceCode string) (*TokenResponse, error) {
	if p.Exchanger == nil {
		return nil, errors.New("poller has no exchanger")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var waited time.Duration
	for attempt := 1; ; attempt++ {
		if p.ExpiresIn > 0 && waited+interval > p.ExpiresIn {
			p.tick(attempt-1, StateExpired)
			return nil, ErrExpiredToken
		}
		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
		waited += interval

		resp, err := p.Exchanger.Exchange(ctx, deviceCode)
		if err != nil {
			var netErr *NetworkError
			if errors.As(err, &netErr) {
				return nil, err
			}
			return nil, &NetworkError{Op: "poll device token", Err: err}
		}

		if resp.AccessToken != "" {
			p.tick(attempt, StateGranted)
			loggerpkg.Debug(true, p.Logger, "device authorization granted", map[string]any{"attempts": attempt})
			return resp, nil
		}

		switch resp.Error {
		case "authorization_pending":
			p.tick(attempt, StatePending)
		case "slow_down":
			interval += SlowDownStep
			p.tick(attempt, StateSlowed)
			loggerpkg.Debug(true, p.Logger, "device authorization slow down", map[string]any{"interval": interval.String()})
		case "access_denied":
			p.tick(attempt, StateDenied)
			return nil, ErrAccessDenied
		case "expired_token":
			p.tick(attempt, StateExpired)
			return nil, ErrExpiredToken
		case "":
			return nil, &FlowError{Code: "invalid_response", Description: "token response has neither access_token nor error"}
		default:
			return nil, &FlowError{Code: resp.Error, Description: resp.ErrorDescription}
		}
	}
}

func (p *Poller) tick(attempt int, state State) {
	if p.OnTick != nil {
		p.OnTick(attempt, state)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
