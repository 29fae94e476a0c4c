package mock

import (
	"context"
	"errors"
	"sync"

	"anarchy.ttfm/storefront/blockchains"
	"anarchy.ttfm/storefront/utils"
)

var ErrScripted = errors.New("scripted failure")

// Response is what the mock answers for one call
type Response struct {
	Confirmation blockchains.Confirmation
	Err          error
}

// Mock implements blockchains.Checker from scripted responses. Each address
// owns a queue; the last response of a queue keeps being returned once the
// queue is exhausted.
type Mock struct {
	mu      sync.Mutex
	scripts map[string][]Response
	last    map[string]Response
	calls   map[string]int
	cap     int
}

var _ blockchains.Checker = (*Mock)(nil)

// New creates a new Mock checker
func New() *Mock {
	return &Mock{
		scripts: make(map[string][]Response),
		last:    make(map[string]Response),
		calls:   make(map[string]int),
		cap:     blockchains.DefaultConfirmationCap,
	}
}

// Push queues responses for address
func (m *Mock) Push(address string, responses ...Response) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scripts[address] = append(m.scripts[address], responses...)
}

// Set replaces the queue of address with a single steady answer
func (m *Mock) Set(address string, confirmation blockchains.Confirmation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.scripts, address)
	m.last[address] = Response{Confirmation: confirmation}
}

// Fail makes every following call for address fail
func (m *Mock) Fail(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.scripts, address)
	m.last[address] = Response{Err: ErrScripted}
}

// Calls returns how many times address was checked
func (m *Mock) Calls(address string) (calls int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[address]
}

func (m *Mock) Check(ctx context.Context, req blockchains.CheckRequest) (confirmation blockchains.Confirmation, err error) {
	err = req.Network.Validate()
	if err != nil {
		return confirmation, blockchains.Failed(err)
	}

	if err = ctx.Err(); err != nil {
		return confirmation, blockchains.Failed(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[req.Address]++

	response := m.last[req.Address]
	if queue := m.scripts[req.Address]; len(queue) > 0 {
		response = queue[0]
		m.scripts[req.Address] = queue[1:]
		m.last[req.Address] = response
	}

	if response.Err != nil {
		return confirmation, blockchains.Failed(response.Err)
	}

	confirmation = response.Confirmation
	confirmation.Confirmations = utils.Clamp(confirmation.Confirmations, 0, m.cap)
	return confirmation, nil
}
