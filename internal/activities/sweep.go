package activities

import (
	"context"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/yourorg/product-catalog/internal/catalog"
	"github.com/yourorg/product-catalog/internal/metrics"
	"github.com/yourorg/product-catalog/internal/storage"
	"github.com/yourorg/product-catalog/internal/types"
)

type Config struct {
	Blobs   storage.BlobStore
	Catalog *catalog.Store
	Log     *zap.Logger
}

type Activities struct {
	cfg Config
}

func New(cfg Config) *Activities { return &Activities{cfg: cfg} }

// SweepOrphanedImages lists every blob in the bucket and deletes image blobs
// that no catalog record references. The catalog document itself and blobs
// younger than the grace period are always kept; a create whose catalog
// write is still in flight must not lose its image.
func (a *Activities) SweepOrphanedImages(ctx context.Context, p types.SweepParams) (types.SweepResult, error) {
	grace := time.Duration(p.GraceMinutes) * time.Minute
	if grace <= 0 {
		grace = time.Hour
	}

	products, err := a.cfg.Catalog.List(ctx)
	if err != nil {
		return types.SweepResult{}, err
	}
	// Records imported from the old list system reference images by full
	// path, but the blob lives under the final segment. Same reduction the
	// API applies when signing.
	referenced := make(map[string]bool, len(products))
	for _, prod := range products {
		key := prod.ImageKey
		if i := strings.LastIndexByte(key, '/'); i >= 0 {
			key = key[i+1:]
		}
		if key != "" {
			referenced[key] = true
		}
	}

	blobs, err := a.cfg.Blobs.List(ctx, "")
	if err != nil {
		return types.SweepResult{}, err
	}

	res := types.SweepResult{}
	cutoff := time.Now().Add(-grace)
	for i, info := range blobs {
		if i%100 == 0 {
			activity.RecordHeartbeat(ctx, i)
		}
		if info.Key == catalog.DocumentKey {
			continue
		}
		res.Scanned++
		if referenced[info.Key] {
			continue
		}
		if !info.LastModified.IsZero() && info.LastModified.After(cutoff) {
			continue
		}
		res.Orphaned++
		res.Keys = append(res.Keys, info.Key)
		if p.DryRun {
			continue
		}
		if err := a.cfg.Blobs.Delete(ctx, info.Key); err != nil {
			a.cfg.Log.Warn("orphan delete failed", zap.String("key", info.Key), zap.Error(err))
			continue
		}
		metrics.OrphansSwept.Inc()
		res.Deleted++
	}

	a.cfg.Log.Info("image sweep finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("orphaned", res.Orphaned),
		zap.Int("deleted", res.Deleted),
		zap.Bool("dryRun", p.DryRun))
	return res, nil
}
