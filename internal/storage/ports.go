package storage

import "context"

// KV is the namespaced key/value backend the stores are persisted in. Values
// are JSON documents kept as raw bytes.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists every stored key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
