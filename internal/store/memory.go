package store

import (
	"strings"
	"sync"
	"time"
)

// Op is one recorded store operation. The memory store keeps a timestamped
// log so tests can assert ordering and throttling of multi-step flows.
type Op struct {
	Kind string // "get", "put", "subscribe"
	Path string
	At   time.Time
}

// MemoryStore is the in-process implementation of the store boundary. It
// behaves like the real thing in the ways that matter here: answers arrive
// via callbacks after a configurable latency, acks are asynchronous and can
// be delayed past any deadline or rejected outright, and puts merge into
// the existing record. Used by tests and by in-memory dev mode.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	subs    map[int]*memSub
	nextSub int
	ops     []Op

	// Fault injection, keyed by path prefix.
	getLatency time.Duration
	ackLatency time.Duration
	putErrs    map[string]error
	silenced   map[string]bool // puts land but are never acknowledged
	unanswered map[string]bool // gets never answer
}

type memSub struct {
	prefix string
	fn     func(key string, value Record)
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]Record),
		subs:       make(map[int]*memSub),
		putErrs:    make(map[string]error),
		silenced:   make(map[string]bool),
		unanswered: make(map[string]bool),
	}
}

// SetGetLatency delays every get answer by d.
func (m *MemoryStore) SetGetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getLatency = d
}

// SetAckLatency delays every put acknowledgement by d. The write itself
// still lands immediately, mimicking a replica that applies locally but is
// slow to confirm.
func (m *MemoryStore) SetAckLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ackLatency = d
}

// RejectPuts makes every put under prefix acknowledge with err and not land.
func (m *MemoryStore) RejectPuts(prefix string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putErrs[prefix] = err
}

// AllowPuts clears a RejectPuts rule.
func (m *MemoryStore) AllowPuts(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.putErrs, prefix)
}

// SilencePuts makes puts under prefix land without ever acknowledging.
func (m *MemoryStore) SilencePuts(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.silenced[prefix] = true
}

// SilenceGets makes gets under prefix never answer.
func (m *MemoryStore) SilenceGets(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unanswered[prefix] = true
}

// Get implements Store.
func (m *MemoryStore) Get(path string, fn func(value Record, ok bool)) {
	m.mu.Lock()
	m.ops = append(m.ops, Op{Kind: "get", Path: path, At: time.Now()})
	latency := m.getLatency
	silent := prefixMatch(m.unanswered, path)
	rec, ok := m.records[path]
	if ok {
		rec = CloneRecord(rec)
	}
	m.mu.Unlock()

	if silent {
		return
	}
	go func() {
		if latency > 0 {
			time.Sleep(latency)
		}
		fn(rec, ok)
	}()
}

// Put implements Store: merge semantics, async ack.
func (m *MemoryStore) Put(path string, value Record, ack func(err error)) {
	m.mu.Lock()
	m.ops = append(m.ops, Op{Kind: "put", Path: path, At: time.Now()})

	if err := matchErr(m.putErrs, path); err != nil {
		m.mu.Unlock()
		go ack(err)
		return
	}

	existing, ok := m.records[path]
	if !ok {
		existing = make(Record)
		m.records[path] = existing
	}
	MergeRecord(existing, value)
	merged := CloneRecord(existing)

	var notify []*memSub
	for _, sub := range m.subs {
		if strings.HasPrefix(path, sub.prefix) {
			notify = append(notify, sub)
		}
	}
	silent := prefixMatch(m.silenced, path)
	latency := m.ackLatency
	m.mu.Unlock()

	for _, sub := range notify {
		go sub.fn(path, CloneRecord(merged))
	}
	if silent {
		return
	}
	go func() {
		if latency > 0 {
			time.Sleep(latency)
		}
		ack(nil)
	}()
}

// Subscribe implements Store: replays current records under prefix, then
// streams writes until stop is called.
func (m *MemoryStore) Subscribe(prefix string, fn func(key string, value Record)) (stop func()) {
	m.mu.Lock()
	m.ops = append(m.ops, Op{Kind: "subscribe", Path: prefix, At: time.Now()})
	id := m.nextSub
	m.nextSub++
	m.subs[id] = &memSub{prefix: prefix, fn: fn}

	snapshot := make(map[string]Record)
	for key, rec := range m.records {
		if strings.HasPrefix(key, prefix) {
			snapshot[key] = CloneRecord(rec)
		}
	}
	m.mu.Unlock()

	go func() {
		for key, rec := range snapshot {
			fn(key, rec)
		}
	}()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Ops returns a copy of the recorded operation log.
func (m *MemoryStore) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Op, len(m.ops))
	copy(out, m.ops)
	return out
}

// Snapshot returns a deep copy of the current records, for assertions.
func (m *MemoryStore) Snapshot() map[string]Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Record, len(m.records))
	for key, rec := range m.records {
		out[key] = CloneRecord(rec)
	}
	return out
}

// Seed places a record directly, bypassing merge and ack machinery.
func (m *MemoryStore) Seed(path string, value Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[path] = CloneRecord(value)
}

func prefixMatch(rules map[string]bool, path string) bool {
	for prefix, on := range rules {
		if on && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func matchErr(rules map[string]error, path string) error {
	for prefix, err := range rules {
		if err != nil && strings.HasPrefix(path, prefix) {
			return err
		}
	}
	return nil
}
