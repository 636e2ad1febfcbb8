// Package checkpoint persists the ingestion cursor: the durable marker
// of the last source position whose records are known to be on the volume.
//
// A checkpoint is a single JSON record replaced atomically as a whole,
// so no reader ever observes a torn cursor.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/modelyard/modelyard/pkg/lifecycle"
	"github.com/modelyard/modelyard/pkg/store"
)

type Checkpoint struct {
	// Cursor is the source-native position of the newest ingested record.
	// Positions compare as plain strings; the source layout keeps them
	// monotonic (offset- or timestamp-prefixed keys).
	Cursor string `json:"cursor"`

	AdvancedAt time.Time `json:"advanced_at"`
}

// Load reads the checkpoint at path.
//
// An absent checkpoint is not an error: it returns the zero checkpoint
// and found=false, meaning "source unread from its beginning".
// A store outage is retryable, like any other input read failure.
// Only an unparseable checkpoint is terminal: no silent reset happens
// here, resetting is an explicit operator action.
func Load(ctx context.Context, s store.ObjectStore, path string) (cp Checkpoint, found bool, err error) {
	content, err := s.Get(ctx, path)
	if err != nil {
		if errors.Is(err, store.ErrNotExist) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, lifecycle.SourceUnreachable{Path: path, Cause: err}
	}

	if err := json.Unmarshal(content, &cp); err != nil {
		return Checkpoint{}, false, lifecycle.BrokenCheckpoint{Path: path, Cause: err}
	}
	return cp, true, nil
}

// Save replaces the checkpoint at path atomically.
//
// Callers invoke this only after the corresponding batch write is
// durable (write-then-advance ordering).
func Save(ctx context.Context, s store.ObjectStore, path string, cp Checkpoint) error {
	content, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return s.Put(ctx, path, content)
}
