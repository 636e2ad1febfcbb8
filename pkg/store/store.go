// Package store abstracts the path-addressed object stores modelyard
// reads and writes: the external data lake and the managed volume.
package store

import (
	"context"
	"errors"
)

// ErrNotExist marks a Get against an absent key.
var ErrNotExist = errors.New("object not found")

// ObjectStore is the minimal surface the pipeline needs from an
// object store.
//
// Contract:
//
//   - Put replaces the whole object atomically: a concurrent Get sees
//     either the previous content or the new one, never a torn write;
//   - List returns keys under prefix in lexicographic order.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
}
