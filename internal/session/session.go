// Package session provides expiring in memory storage for protocol sessions.
//
// Pairing runs many concurrent sessions over a shared broadcast medium. Each
// session is identified by a random tag carried in every message, and the
// responder side keeps per session state in a Store until the session
// completes or expires.
package session

// Store indexes session state of type V by keys of type K.
//
// Implementations are safe for concurrent use and may evict entries that
// exceeded their time to live.
type Store[K comparable, V any] interface {
	Get(key K) (V, bool)
	Pop(key K) (V, bool)
	Set(key K, data V) error
	Save(data V) (K, error)
}

// KeyFactory generates and validates Store keys.
type KeyFactory[K comparable] interface {
	New() K
	Check(key K) error
}
