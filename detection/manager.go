package detection

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"anarchy.ttfm/storefront/blockchains"
	"anarchy.ttfm/storefront/utils"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("detection session not found")
	ErrManagerClosed   = errors.New("detection manager closed")
)

const (
	DefaultWorkers   = 16
	DefaultRetention = time.Minute
)

type Config struct {
	Checker blockchains.Checker
	Settler Settler
	Policy  Policy
	// Checker calls allowed in flight across every session
	Workers int
	// Finished sessions stay queryable this long before being released.
	// Defaults to DefaultRetention
	Retention time.Duration
	Now       func() time.Time
}

type entry struct {
	loop   *Loop
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager runs one detection loop per order. Finished sessions stay
// queryable for the retention period, then they are dropped.
type Manager struct {
	checker blockchains.Checker
	settler Settler
	policy  Policy
	pool      *utils.JobPool
	retention time.Duration
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	sessions map[uuid.UUID]*entry
}

func NewManager(config Config) (m *Manager, err error) {
	err = config.Policy.Validate()
	if err != nil {
		return nil, err
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}

	ctx, cancel := context.WithCancel(context.Background())
	m = &Manager{
		checker:  config.Checker,
		settler:  config.Settler,
		policy:   config.Policy,
		pool:      utils.NewJobPool(config.Workers),
		retention: config.Retention,
		now:       config.Now,
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[uuid.UUID]*entry),
	}
	return m, nil
}

func (m *Manager) Policy() (policy Policy) {
	return m.policy
}

// Start begins detection for req.OrderId. While a session for the order is
// running the call returns it untouched.
func (m *Manager) Start(req Request) (session Session, err error) {
	err = req.Validate()
	if err != nil {
		return session, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return session, ErrManagerClosed
	}

	if current, found := m.sessions[req.OrderId]; found {
		select {
		case <-current.done:
		default:
			return current.loop.Snapshot(), nil
		}
	}

	loop, err := NewLoop(LoopConfig{
		Checker: m.checker,
		Settler: m.settler,
		Policy:  m.policy,
		Request: req,
		Pool:    m.pool,
		Now:     m.now,
	})
	if err != nil {
		return session, err
	}

	ctx, cancel := context.WithCancel(m.ctx)
	e := &entry{loop: loop, cancel: cancel, done: make(chan struct{})}
	m.sessions[req.OrderId] = e

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.release(req.OrderId, e)
		defer close(e.done)
		defer cancel()

		final, err := loop.Run(ctx)
		if err != nil {
			log.Println("ERROR|DETECTION|RUN", req.OrderId, err)
			return
		}
		log.Println("INFO|DETECTION|FINISHED", req.OrderId, final.State)
	}()

	return loop.Snapshot(), nil
}

// release drops the finished entry once the retention period passed, unless
// a newer session replaced it
func (m *Manager) release(orderId uuid.UUID, e *entry) {
	time.AfterFunc(m.retention, func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.sessions[orderId] == e {
			delete(m.sessions, orderId)
		}
	})
}

// Cancel abandons the session of orderId and waits for its loop to stop
func (m *Manager) Cancel(orderId uuid.UUID) (session Session, err error) {
	m.mu.Lock()
	e, found := m.sessions[orderId]
	m.mu.Unlock()
	if !found {
		return session, ErrSessionNotFound
	}

	e.cancel()
	<-e.done
	return e.loop.Snapshot(), nil
}

func (m *Manager) Session(orderId uuid.UUID) (session Session, err error) {
	m.mu.Lock()
	e, found := m.sessions[orderId]
	m.mu.Unlock()
	if !found {
		return session, ErrSessionNotFound
	}
	return e.loop.Snapshot(), nil
}

// Active returns how many loops are still running
func (m *Manager) Active() (n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.sessions {
		select {
		case <-e.done:
		default:
			n++
		}
	}
	return n
}

// Tracked returns how many sessions, running or finished, are still held
func (m *Manager) Tracked() (n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

// Close abandons every running session and waits for the loops to return
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}
