// Package cooldown decides whether a recognised identity produces a new attendance record.
//
// Two tiers gate a record. The session tier is an in-memory per-identity timer
// that only starts after a successful record and keeps the loop from hitting
// the ledger on every frame. The ledger tier is the persisted minimum interval
// and survives restarts.
package cooldown

import (
	"fmt"
	"time"

	"github.com/andresmejia3/rollcall/internal/ledger"
)

// DefaultSessionCooldown is how long after a record the ledger is not consulted again.
const DefaultSessionCooldown = 10 * time.Second

// Outcome is the result of one OnMatch call.
type Outcome int

const (
	Recorded Outcome = iota
	SessionCoolingDown
	LedgerIneligible
)

func (o Outcome) String() string {
	switch o {
	case Recorded:
		return "recorded"
	case SessionCoolingDown:
		return "session-cooling-down"
	case LedgerIneligible:
		return "ledger-ineligible"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Recorder is the ledger tier.
type Recorder interface {
	TryRecord(name string, now time.Time) (bool, error)
}

// SessionState maps a canonical identity to the time of its last successful record.
type SessionState map[string]time.Time

// Clone returns an independent copy.
func (s SessionState) Clone() SessionState {
	out := make(SessionState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Controller owns the session tier and delegates the ledger tier to a Recorder.
// It is not safe for concurrent use; the recognition loop is single threaded.
type Controller struct {
	recorder Recorder
	cooldown time.Duration
	state    SessionState
}

// New builds a controller. A nil state starts an empty session.
func New(recorder Recorder, sessionCooldown time.Duration, state SessionState) *Controller {
	if state == nil {
		state = SessionState{}
	}
	return &Controller{recorder: recorder, cooldown: sessionCooldown, state: state.Clone()}
}

// State returns a snapshot of the session tier.
func (c *Controller) State() SessionState {
	return c.state.Clone()
}

// OnMatch runs both tiers for identity at now.
//
// The session timer is only updated on Recorded. A LedgerIneligible outcome
// leaves it untouched, so the next frame asks the ledger again.
func (c *Controller) OnMatch(identity string, now time.Time) (Outcome, error) {
	key := ledger.Canonical(identity)

	if last, ok := c.state[key]; ok && now.Sub(last) < c.cooldown {
		return SessionCoolingDown, nil
	}

	ok, err := c.recorder.TryRecord(key, now)
	if err != nil {
		return LedgerIneligible, fmt.Errorf("record %s: %w", key, err)
	}
	if !ok {
		return LedgerIneligible, nil
	}

	c.state[key] = now
	return Recorded, nil
}
