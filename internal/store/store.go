// Package store provides the machine-local key-value persistence used by the
// sync core. Values are opaque byte slices; a missing key reads as nil.
package store

// KV is a scoped synchronous key-value store.
type KV interface {
	// Get returns the stored value, or nil if the key is absent.
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}
