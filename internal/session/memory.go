package session

import (
	"sync"
	"time"
)

type entry[V any] struct {
	data     V
	deadline time.Time
}

// MemStore is an in memory session Store that automatically expires entries.
//
// Each entry carries its own deadline, set TTL in the future when the entry is
// registered. Expired entries are invisible to Get and Pop and are swept out
// whenever the store is mutated.
type MemStore[K comparable, V any] struct {
	KeyFacto KeyFactory[K]
	TTL      time.Duration

	mut     sync.Mutex
	entries map[K]entry[V]
	now     func() time.Time
}

// NewMemStore instantiates a new MemStore holding entries for ttl.
// It errors if kf is nil or ttl <= 0.
func NewMemStore[K comparable, V any](kf KeyFactory[K], ttl time.Duration) (*MemStore[K, V], error) {
	if nil == kf {
		return nil, newError("nil KeyFactory")
	}
	if ttl <= 0 {
		return nil, newError("invalid ttl %d <= 0", ttl)
	}

	store := &MemStore[K, V]{
		KeyFacto: kf,
		TTL:      ttl,
		entries:  make(map[K]entry[V]),
		now:      time.Now,
	}

	return store, nil
}

// Get returns the value indexed by key.
// The bool flag is true if key exists in the MemStore and has not expired.
func (self *MemStore[K, V]) Get(key K) (V, bool) {
	var v V
	var present bool

	if err := self.KeyFacto.Check(key); nil != err {
		return v, present
	}

	self.mut.Lock()
	defer self.mut.Unlock()

	e, present := self.entries[key]
	if present && self.now().After(e.deadline) {
		delete(self.entries, key)
		var zero V
		return zero, false
	}

	return e.data, present
}

// Pop removes the key from the MemStore and returns the associated value.
// The bool flag is true if the key was found and had not expired.
func (self *MemStore[K, V]) Pop(key K) (V, bool) {
	var v V
	var present bool

	if err := self.KeyFacto.Check(key); nil != err {
		return v, present
	}

	self.mut.Lock()
	defer self.mut.Unlock()

	e, present := self.entries[key]
	if present {
		delete(self.entries, key)
		if self.now().After(e.deadline) {
			var zero V
			return zero, false
		}
	}

	return e.data, present
}

// Set registers key, data in the MemStore.
// It errors if key is not valid.
func (self *MemStore[K, V]) Set(key K, data V) error {
	err := self.KeyFacto.Check(key)
	if nil != err {
		return wrapError(err, "invalid key")
	}

	self.mut.Lock()
	defer self.mut.Unlock()

	self.sweep()
	self.entries[key] = entry[V]{data: data, deadline: self.now().Add(self.TTL)}

	return nil
}

// Save registers data in the MemStore using a new key.
// Save returns the key indexing data.
func (self *MemStore[K, V]) Save(data V) (K, error) {
	key := self.KeyFacto.New()

	self.mut.Lock()
	defer self.mut.Unlock()

	self.sweep()
	self.entries[key] = entry[V]{data: data, deadline: self.now().Add(self.TTL)}

	return key, nil
}

// sweep drops expired entries. Callers hold self.mut.
func (self *MemStore[K, V]) sweep() {
	now := self.now()
	for key, e := range self.entries {
		if now.After(e.deadline) {
			delete(self.entries, key)
		}
	}
}

var _ Store[string, int] = &MemStore[string, int]{}
