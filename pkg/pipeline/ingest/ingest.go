// Package ingest copies new source records from the data lake onto the
// managed volume and advances the ingestion checkpoint.
//
// Ordering is write-then-advance: the checkpoint moves only after every
// record of the batch is durable on the volume. A re-invocation with a
// stale checkpoint rewrites the same batch under the same batch ref, so
// at-least-once scheduling never duplicates records.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"path"
	"strings"
	"time"

	"github.com/modelyard/modelyard/pkg/checkpoint"
	"github.com/modelyard/modelyard/pkg/lifecycle"
	"github.com/modelyard/modelyard/pkg/store"
)

type Params struct {
	// SourcePath is the prefix in the data lake to read from.
	SourcePath string

	// VolumePath is the destination prefix on the managed volume.
	VolumePath string

	// CheckpointPath locates the checkpoint record on the managed volume.
	CheckpointPath string
}

type Result struct {
	RowsWritten int    `json:"rows_written"`
	NewCursor   string `json:"new_cursor"`
	BatchRef    string `json:"batch_ref,omitempty"`
}

func Run(
	ctx context.Context,
	logger *log.Logger,
	lake store.ObjectStore,
	volume store.ObjectStore,
	p Params,
) (Result, error) {

	cp, found, err := checkpoint.Load(ctx, volume, p.CheckpointPath)
	if err != nil {
		return Result{}, err
	}
	if !found {
		logger.Printf("no checkpoint at %s: reading %s from its beginning", p.CheckpointPath, p.SourcePath)
	}

	sourcePrefix := ensureSlash(p.SourcePath)
	keys, err := lake.List(ctx, sourcePrefix)
	if err != nil {
		return Result{}, lifecycle.SourceUnreachable{Path: p.SourcePath, Cause: err}
	}

	// keys are in lexicographic = cursor order
	fresh := []string{}
	for _, key := range keys {
		if key > cp.Cursor {
			fresh = append(fresh, key)
		}
	}
	if len(fresh) == 0 {
		logger.Printf("source %s has nothing newer than cursor %q", p.SourcePath, cp.Cursor)
		return Result{RowsWritten: 0, NewCursor: cp.Cursor}, nil
	}

	newCursor := fresh[len(fresh)-1]
	batchRef := batchRef(cp.Cursor)

	for _, key := range fresh {
		content, err := lake.Get(ctx, key)
		if err != nil {
			return Result{}, lifecycle.SourceUnreachable{Path: key, Cause: err}
		}
		dest := path.Join(p.VolumePath, "batch="+batchRef, strings.TrimPrefix(key, sourcePrefix))
		if err := volume.Put(ctx, dest, content); err != nil {
			// checkpoint untouched; the batch is rewritten wholesale on retry
			return Result{}, lifecycle.WriteFailed{Path: dest, Cause: err}
		}
	}

	cp = checkpoint.Checkpoint{Cursor: newCursor, AdvancedAt: time.Now()}
	if err := checkpoint.Save(ctx, volume, p.CheckpointPath, cp); err != nil {
		return Result{}, lifecycle.WriteFailed{Path: p.CheckpointPath, Cause: err}
	}

	logger.Printf(
		"ingested %d records from %s as batch %s, cursor %q",
		len(fresh), p.SourcePath, batchRef, newCursor,
	)
	return Result{RowsWritten: len(fresh), NewCursor: newCursor, BatchRef: batchRef}, nil
}

// batchRef names a batch by the cursor it starts from. The checkpoint is
// the only input, so every retry from the same checkpoint rewrites the same
// prefix wholesale, even when the source grew between the failure and the
// retry. Hashing the upper bound too would give such a retry a fresh prefix
// and leave the partial batch behind as duplicates.
func batchRef(from string) string {
	sum := sha256.Sum256([]byte(from))
	return hex.EncodeToString(sum[:])[:16]
}

func ensureSlash(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}
