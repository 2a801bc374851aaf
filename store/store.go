// Package store is the durable key-value blob store the integration keeps
// its app-level webhook registration in. Whole-blob replace is assumed
// atomic; anything finer grained is the caller's business.
package store

import "context"

// Store loads and saves one opaque blob.
type Store interface {
	// Load returns the stored blob, or nil when nothing was saved yet.
	Load(ctx context.Context) ([]byte, error)
	// Save atomically replaces the stored blob.
	Save(ctx context.Context, blob []byte) error
}

// Memory is an in-process Store; tests and throwaway setups.
type Memory struct {
	blob []byte
}

func (c *Memory) Load(context.Context) ([]byte, error) {
	if c.blob == nil {
		return nil, nil
	}
	return append([]byte(nil), c.blob...), nil
}

func (c *Memory) Save(_ context.Context, blob []byte) error {
	c.blob = append([]byte(nil), blob...)
	return nil
}
