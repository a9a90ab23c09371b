// Package genericpool adapts a ztier.Pool to the shape a generic
// compressed-page pool embeds against: Create/Destroy/Malloc/Free/Shrink/
// Map/Unmap/TotalSize. It mirrors the zpool_driver vtable original_source/
// mm/ztier.c registers under CONFIG_ZPOOL, translating each zpool_driver
// entry point to the matching ztier.Pool method one-for-one.
package genericpool

import (
	"github.com/markmansi/ztier"
	"github.com/markmansi/ztier/pkg/zerrors"
)

// Evictor is the generic pool's own eviction callback, the Go analogue of
// struct zpool_ops.evict. A generic pool that never registers one gets an
// Adapter whose eviction hook refuses every live chunk -- the way
// ztier_zpool_evict returns -ENOENT when pool->zpool_ops is nil -- so
// ReclaimPage can then free only pages that hold no live allocation.
type Evictor interface {
	Evict(handle ztier.Handle) error
}

// Backend is the vtable a generic page pool calls through. Shrink returns
// the number of pages actually reclaimed, matching ztier_zpool_shrink's
// *reclaimed out-parameter.
type Backend interface {
	Destroy() error
	Malloc(size int) (ztier.Handle, error)
	Free(handle ztier.Handle)
	Shrink(pages int) (int, error)
	Map(handle ztier.Handle) []byte
	Unmap(handle ztier.Handle)
	TotalSize() uint64
}

// shrinkRetries is the retry budget ztier_zpool_shrink passes to
// ztier_reclaim_page for every page it shrinks.
const shrinkRetries = 8

// Adapter implements Backend over a ztier.Pool, routing ReclaimPage's
// eviction hook to a caller-supplied Evictor the way ztier_zpool_create
// wires pool->zpool_ops into ztier_zpool_ops.evict.
type Adapter struct {
	pool    *ztier.Pool
	evictor Evictor
}

var _ Backend = (*Adapter)(nil)

// New creates a pool configured per cfg and wraps it as a Backend. cfg.Ops
// is overwritten: the adapter supplies its own Evict that forwards to
// evictor, mirroring ztier_zpool_create's pool->zpool_ops wiring. evictor
// may be nil, in which case every eviction fails, matching the upstream
// zpool_ops == NULL case: Shrink still reclaims pages whose chunks are all
// free, and stops at the first page that holds a live allocation.
func New(cfg ztier.Config, evictor Evictor) *Adapter {
	a := &Adapter{evictor: evictor}
	cfg.Ops = &ztier.Ops{Evict: a.evict}
	a.pool = ztier.CreatePool(cfg)
	return a
}

func (a *Adapter) evict(_ *ztier.Pool, handle ztier.Handle) error {
	if a.evictor == nil {
		return zerrors.InvalidArgument("generic pool: no evictor registered")
	}
	return a.evictor.Evict(handle)
}

// Destroy implements ztier_zpool_destroy.
func (a *Adapter) Destroy() error { return a.pool.DestroyPool() }

// Malloc implements ztier_zpool_malloc. Flags beyond pageframe's default
// are not exposed at this layer, matching how zpool_malloc only forwards
// gfp_t through to ztier_alloc.
func (a *Adapter) Malloc(size int) (ztier.Handle, error) { return a.pool.Alloc(size, 0) }

// Free implements ztier_zpool_free.
func (a *Adapter) Free(handle ztier.Handle) { a.pool.Free(handle) }

// Shrink implements ztier_zpool_shrink: it calls ReclaimPage once per page
// until pages have been reclaimed or a reclaim attempt fails, returning
// how many pages it actually freed.
func (a *Adapter) Shrink(pages int) (int, error) {
	reclaimed := 0
	var err error
	for reclaimed < pages {
		if err = a.pool.ReclaimPage(shrinkRetries); err != nil {
			break
		}
		reclaimed++
	}
	return reclaimed, err
}

// Map implements ztier_zpool_map. The zpool_mapmode hint upstream passes
// (RO/WO/RW) has no ztier-side effect, same as ztier_zpool_map ignoring mm.
func (a *Adapter) Map(handle ztier.Handle) []byte { return a.pool.Map(handle) }

// Unmap implements ztier_zpool_unmap.
func (a *Adapter) Unmap(handle ztier.Handle) { a.pool.Unmap(handle) }

// TotalSize implements ztier_zpool_total_size.
func (a *Adapter) TotalSize() uint64 { return a.pool.GetPoolSize() }
