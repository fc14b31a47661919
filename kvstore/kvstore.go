// Package kvstore provides the shared local key-value store that every
// surface on a device reads its authentication state from. The admin
// dashboard, the mail add-in, and the scanner app are built and shipped
// independently; they interoperate only through this store, so key names
// carry a common prefix and multi-key writes must be atomic.
package kvstore

// keyPrefix namespaces every key so independently built surfaces agree
// on where state lives on a shared device.
const keyPrefix = "attachly."

// Key returns the namespaced form of a state key.
func Key(name string) string {
	return keyPrefix + name
}

// Store is the device-local key-value store shared between surfaces.
//
// SetMany and DeleteMany are atomic: a concurrent reader observes either
// none or all of the keys written by a single call, never a mix of two
// writers. Last write wins; there is no merging.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// SetMany writes all given keys in one atomic step.
	SetMany(values map[string]string) error

	// DeleteMany removes all given keys in one atomic step. Missing
	// keys are not an error.
	DeleteMany(keys ...string) error

	// Subscribe registers fn to be invoked with the name of a key whose
	// value changed, including changes made by other processes.
	// Notification is advisory and best-effort: a surface that is not
	// running when a change happens never hears about it and must
	// tolerate stale reads until its next authenticated call fails.
	// The returned cancel function unregisters fn.
	Subscribe(fn func(key string)) (cancel func())

	// Close releases any watcher resources held by the store.
	Close() error
}
