package detection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"anarchy.ttfm/storefront/blockchains"
	"anarchy.ttfm/storefront/utils"
	"github.com/google/uuid"
)

// Settler moves a confirmed order forward, fulfillment.Hook.Settle in production
type Settler interface {
	Settle(ctx context.Context, orderId uuid.UUID) (err error)
}

// SettlerFunc adapts a function to Settler
type SettlerFunc func(ctx context.Context, orderId uuid.UUID) (err error)

func (f SettlerFunc) Settle(ctx context.Context, orderId uuid.UUID) (err error) {
	return f(ctx, orderId)
}

type LoopConfig struct {
	Checker blockchains.Checker
	Settler Settler
	Policy  Policy
	Request Request
	// Bounds checker calls shared with other loops. Optional
	Pool *utils.JobPool
	// Defaults to time.Now
	Now func() time.Time
}

// Loop drives the Machine of one checkout from checker results
type Loop struct {
	checker blockchains.Checker
	settler Settler
	policy  Policy
	pool    *utils.JobPool
	now     func() time.Time
	network blockchains.Network

	// serializes Poll
	polling sync.Mutex

	mu      sync.Mutex
	req     Request
	machine *Machine
	settled bool
	started time.Time
	updated time.Time
}

func NewLoop(config LoopConfig) (l *Loop, err error) {
	err = config.Request.Validate()
	if err != nil {
		return nil, err
	}
	err = config.Policy.Validate()
	if err != nil {
		return nil, err
	}

	network, _ := config.Request.Method.Network()
	l = &Loop{
		checker: config.Checker,
		settler: config.Settler,
		policy:  config.Policy,
		pool:    config.Pool,
		now:     config.Now,
		network: network,
		req:     config.Request,
		machine: NewMachine(config.Policy, config.Request.Expected),
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l, nil
}

// Snapshot returns the current session
func (l *Loop) Snapshot() (session Session) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.snapshot()
}

func (l *Loop) snapshot() (session Session) {
	session = Session{
		OrderId:   l.req.OrderId,
		Method:    l.req.Method,
		Network:   l.network,
		Address:   l.req.Address,
		Expected:  l.req.Expected,
		State:     l.machine.State(),
		Progress:  l.machine.Progress(),
		Settled:   l.settled,
		StartedAt: l.started,
		UpdatedAt: l.updated,
	}
	if !l.started.IsZero() {
		session.Deadline = l.started.Add(l.policy.MaxDuration)
	}
	return session
}

// Done reports if polling is over: abandoned, or confirmed and settled
func (l *Loop) Done() (done bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.done()
}

func (l *Loop) done() (done bool) {
	state := l.machine.State()
	return state == StateAbandoned || (state == StateConfirmed && l.settled)
}

func (l *Loop) check(ctx context.Context) (confirmation blockchains.Confirmation, err error) {
	if l.pool != nil {
		err = l.pool.GetContext(ctx)
		if err != nil {
			return confirmation, blockchains.Failed(err)
		}
		defer l.pool.Put()
	}
	return l.checker.Check(ctx, blockchains.CheckRequest{Network: l.network, Address: l.req.Address})
}

func (l *Loop) settle(ctx context.Context) (settled bool) {
	if l.settler == nil {
		return true
	}

	err := l.settler.Settle(ctx, l.req.OrderId)
	if err != nil {
		log.Println("ERROR|DETECTION|SETTLE", l.req.OrderId, err)
		return false
	}
	log.Println("INFO|DETECTION|SETTLED", l.req.OrderId)
	return true
}

// apply feeds an event to the machine unless a concurrent Cancel already
// ended the session
func (l *Loop) apply(event Event) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.machine.State() == StateAbandoned {
		return nil
	}
	_, err = l.machine.Apply(event)
	return err
}

// Poll runs one tick: start if idle, expire when past the deadline, check
// the address while detecting and settle once confirmed. Checker failures
// are recorded and never returned. The checker and the settler are called
// without holding the session lock.
func (l *Loop) Poll(ctx context.Context) (session Session, err error) {
	l.polling.Lock()
	defer l.polling.Unlock()

	now := l.now()
	defer func() {
		l.mu.Lock()
		l.updated = now
		session = l.snapshot()
		l.mu.Unlock()
	}()

	l.mu.Lock()
	if l.machine.State() == StateIdle {
		l.started = now
		err = l.machine.Start()
		if err != nil {
			l.mu.Unlock()
			return session, err
		}
	}
	if l.machine.State() == StateDetecting && !now.Before(l.started.Add(l.policy.MaxDuration)) {
		log.Println("INFO|DETECTION|EXPIRED", l.req.OrderId)
		err = l.machine.Expire()
		l.mu.Unlock()
		return session, err
	}
	detecting := l.machine.State() == StateDetecting
	l.mu.Unlock()

	if detecting {
		confirmation, cErr := l.check(ctx)
		if cErr != nil {
			log.Println("ERROR|DETECTION|CHECK", l.req.OrderId, cErr)
			return session, l.apply(Event{Kind: EventFail, Err: cErr})
		}

		err = l.apply(Event{Kind: EventObserve, Confirmation: confirmation})
		if err != nil {
			return session, err
		}
	}

	l.mu.Lock()
	pending := l.machine.State() == StateConfirmed && !l.settled
	l.mu.Unlock()

	if pending && l.settle(ctx) {
		l.mu.Lock()
		l.settled = true
		l.mu.Unlock()
	}
	return session, nil
}

// Cancel abandons the session unless it already ended
func (l *Loop) Cancel() (session Session) {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.machine.Cancel()
	if err != nil && !errors.Is(err, ErrInvalidTransition) {
		log.Println("ERROR|DETECTION|CANCEL", l.req.OrderId, err)
	}
	return l.snapshot()
}

// Run polls right away and then every interval until the loop is done, the
// deadline passes or ctx is cancelled. Cancellation abandons the session.
func (l *Loop) Run(ctx context.Context) (session Session, err error) {
	session, err = l.Poll(ctx)
	if err != nil {
		return session, fmt.Errorf("failed to poll: %w", err)
	}

	ticker := time.NewTicker(l.policy.Interval)
	defer ticker.Stop()

	for !l.Done() {
		select {
		case <-ctx.Done():
			return l.Cancel(), nil
		case <-ticker.C:
			session, err = l.Poll(ctx)
			if err != nil {
				return session, fmt.Errorf("failed to poll: %w", err)
			}
			if session.State == StateConfirmed && !session.Settled && !l.now().Before(session.Deadline) {
				log.Println("ERROR|DETECTION|UNSETTLED", l.req.OrderId)
				return session, nil
			}
		}
	}
	return l.Snapshot(), nil
}
