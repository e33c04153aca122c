package directory

import (
	"context"
	"strings"
	"sync"
)

// maxBufferedNotices caps the per-recipient backlog; the oldest entries fall
// off when a client stops polling.
const maxBufferedNotices = 64

// MemoryDirectory is the in-process roster and notice buffer used by
// standalone deployments and tests. Notices for connected recipients queue up
// until drained.
type MemoryDirectory struct {
	mu        sync.RWMutex
	online    map[string]string // lowercased name -> display name
	operators map[string]struct{}
	notices   map[string][]Notice
}

// NewMemoryDirectory builds an empty roster with the given operator names.
func NewMemoryDirectory(operators []string) *MemoryDirectory {
	ops := make(map[string]struct{}, len(operators))
	for _, op := range operators {
		ops[strings.ToLower(op)] = struct{}{}
	}
	return &MemoryDirectory{
		online:    make(map[string]string),
		operators: ops,
		notices:   make(map[string][]Notice),
	}
}

func (d *MemoryDirectory) Join(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.online[strings.ToLower(name)] = name
	return nil
}

func (d *MemoryDirectory) Leave(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	lower := strings.ToLower(name)
	delete(d.online, lower)
	delete(d.notices, lower)
	return nil
}

func (d *MemoryDirectory) IsConnected(ctx context.Context, name string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.online[strings.ToLower(name)]
	return ok, nil
}

func (d *MemoryDirectory) Connected(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.online))
	for _, display := range d.online {
		names = append(names, display)
	}
	return names, nil
}

func (d *MemoryDirectory) IsOperator(ctx context.Context, name string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.operators[strings.ToLower(name)]
	return ok, nil
}

// SetOperator grants or revokes operator standing at runtime.
func (d *MemoryDirectory) SetOperator(name string, operator bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	lower := strings.ToLower(name)
	if operator {
		d.operators[lower] = struct{}{}
	} else {
		delete(d.operators, lower)
	}
}

// Deliver buffers the notice for a connected recipient; disconnected
// recipients are skipped silently.
func (d *MemoryDirectory) Deliver(ctx context.Context, recipient string, notice Notice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	lower := strings.ToLower(recipient)
	if _, ok := d.online[lower]; !ok {
		return nil
	}
	queue := append(d.notices[lower], notice)
	if len(queue) > maxBufferedNotices {
		queue = queue[len(queue)-maxBufferedNotices:]
	}
	d.notices[lower] = queue
	return nil
}

// Drain returns and clears the pending notices for a recipient.
func (d *MemoryDirectory) Drain(ctx context.Context, recipient string) ([]Notice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	lower := strings.ToLower(recipient)
	pending := d.notices[lower]
	delete(d.notices, lower)
	return pending, nil
}
