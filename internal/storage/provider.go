// Package storage defines the key/blob store that backs local persistence.
package storage

// Provider is a flat key/value store of opaque blobs, the on-disk analogue
// of browser localStorage.
type Provider interface {
	// Get returns the blob stored under key. found is false when the key
	// has never been written or was removed.
	Get(key string) (data []byte, found bool, err error)
	// Set atomically replaces the blob stored under key.
	Set(key string, data []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
	// Keys lists every stored key in lexical order.
	Keys() ([]string, error)
}
