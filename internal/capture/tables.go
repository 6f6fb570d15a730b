package capture

import (
	"sync"
	"time"

	"github.com/cmarkh/audible-api/pkg/logging"
)

// DefaultEntryTTL is how long a pending device or an unclaimed registration
// is kept before the cleanup loop evicts it.
const DefaultEntryTTL = 10 * time.Minute

const cleanupInterval = time.Minute

// PendingDevice is a sign-in that has been started in the browser but whose
// authorization code has not been captured yet.
type PendingDevice struct {
	DeviceSerial  string
	CodeVerifier  string
	OAuthURL      string
	CountryCode   string
	Domain        string
	MarketplaceID string
	WithUsername  bool
	CreatedAt     time.Time
}

type tableEntry[V any] struct {
	value     V
	createdAt time.Time
}

// table is a mutex-guarded map keyed by device serial whose entries expire
// after ttl.
type table[V any] struct {
	name     string
	mu       sync.Mutex
	entries  map[string]tableEntry[V]
	ttl      time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newTable[V any](name string, ttl time.Duration) *table[V] {
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	t := &table[V]{
		name:    name,
		entries: make(map[string]tableEntry[V]),
		ttl:     ttl,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go t.cleanupLoop()
	return t
}

func (t *table[V]) put(key string, value V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = tableEntry[V]{value: value, createdAt: t.now()}
}

// take removes and returns the entry for key. Expired entries are treated
// as absent.
func (t *table[V]) take(key string) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero V
	entry, ok := t.entries[key]
	if !ok {
		return zero, false
	}
	delete(t.entries, key)
	if t.expired(entry) {
		logging.Debug("Capture", "%s entry for %s expired", t.name, key)
		return zero, false
	}
	return entry.value, true
}

func (t *table[V]) remove(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

func (t *table[V]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *table[V]) stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

func (t *table[V]) expired(entry tableEntry[V]) bool {
	return t.now().Sub(entry.createdAt) > t.ttl
}

func (t *table[V]) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanup()
		case <-t.stopCh:
			return
		}
	}
}

func (t *table[V]) cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for key, entry := range t.entries {
		if t.expired(entry) {
			delete(t.entries, key)
			count++
		}
	}
	if count > 0 {
		logging.Debug("Capture", "Evicted %d expired %s entries", count, t.name)
	}
}

// PendingDevices holds sign-ins awaiting a captured authorization code.
type PendingDevices struct {
	t *table[*PendingDevice]
}

// NewPendingDevices creates an empty table. A non-positive ttl selects
// DefaultEntryTTL. Call Stop to end the cleanup loop.
func NewPendingDevices(ttl time.Duration) *PendingDevices {
	return &PendingDevices{t: newTable[*PendingDevice]("pending device", ttl)}
}

// Put records d, replacing any earlier sign-in for the same serial.
func (p *PendingDevices) Put(d *PendingDevice) {
	p.t.put(d.DeviceSerial, d)
}

// Take removes and returns the pending device for serial.
func (p *PendingDevices) Take(serial string) (*PendingDevice, bool) {
	return p.t.take(serial)
}

// Remove discards the pending device for serial, if any.
func (p *PendingDevices) Remove(serial string) {
	p.t.remove(serial)
}

func (p *PendingDevices) Len() int { return p.t.len() }

// Stop ends the cleanup loop.
func (p *PendingDevices) Stop() { p.t.stop() }

// Registrations holds registrations completed by the capture endpoint until
// the waiting caller claims them.
type Registrations struct {
	t *table[*Result]
}

// NewRegistrations creates an empty table. A non-positive ttl selects
// DefaultEntryTTL. Call Stop to end the cleanup loop.
func NewRegistrations(ttl time.Duration) *Registrations {
	return &Registrations{t: newTable[*Result]("registration", ttl)}
}

// Put records a completed registration under its device serial.
func (r *Registrations) Put(res *Result) {
	r.t.put(res.Grant.DeviceSerial, res)
}

// Take removes and returns the registration for serial. A registration can
// be claimed once.
func (r *Registrations) Take(serial string) (*Result, bool) {
	return r.t.take(serial)
}

// Remove discards the registration for serial, if any.
func (r *Registrations) Remove(serial string) {
	r.t.remove(serial)
}

func (r *Registrations) Len() int { return r.t.len() }

// Stop ends the cleanup loop.
func (r *Registrations) Stop() { r.t.stop() }
