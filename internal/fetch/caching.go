package fetch

import (
	"context"

	"github.com/specialistvlad/bundlegrid/internal/ctxlog"
)

// ByteStore is the persistence used by CachingGetter.
type ByteStore interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, data []byte) error
}

// CachingGetter serves bytes from a ByteStore when present and fills the
// store from the wrapped Getter otherwise. Store failures are logged and
// never fail a fetch.
type CachingGetter struct {
	next  Getter
	store ByteStore
}

// NewCachingGetter wraps next with store.
func NewCachingGetter(next Getter, store ByteStore) *CachingGetter {
	return &CachingGetter{next: next, store: store}
}

// Get implements Getter.
func (c *CachingGetter) Get(ctx context.Context, uri string) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)

	data, ok, err := c.store.Get(uri)
	switch {
	case err != nil:
		logger.Warn("Bundle cache read failed, fetching from source.", "uri", uri, "error", err)
	case ok:
		logger.Debug("Bundle served from disk cache.", "uri", uri, "size", len(data))
		return data, nil
	}

	data, err = c.next.Get(ctx, uri)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(uri, data); err != nil {
		logger.Warn("Bundle cache write failed.", "uri", uri, "error", err)
	}
	return data, nil
}
