package ztier

import (
	"sync"

	"github.com/markmansi/ztier/internal/addrset"
	"github.com/markmansi/ztier/internal/pagelru"
	"github.com/markmansi/ztier/internal/pageframe"
)

// Handle is the virtual address of an allocated chunk -- opaque to
// callers, stable for the lifetime of the allocation (spec.md section 3).
type Handle uint64

// EvictFunc is the eviction hook contract of spec.md section 6: the
// callee must call Free on handle before returning a nil error; returning
// a non-nil error tells ReclaimPage this handle cannot be evicted right
// now, and the allocator rolls the victim page back.
type EvictFunc func(pool *Pool, handle Handle) error

// Ops bundles the user-defined operations supplied at pool creation. A nil
// Ops, or an Ops with a nil Evict, means no eviction hook is registered;
// ReclaimPage then always fails with InvalidArgument, per spec.md
// section 4.6.
type Ops struct {
	Evict EvictFunc
}

// minNodeSize is the nominal footprint of one ordered-set node. spec.md
// section 9 requires the smallest tier to be able to hold a free-list node
// plus any externally-required header; this repo's ordered sets allocate
// their nodes as ordinary Go values rather than embedding them in the
// chunk bytes (see DESIGN.md), but CreatePool still enforces the same
// size floor so a tier table that would be too small for the embedded-node
// layout the original allocator uses is rejected just the same.
const minNodeSize = 16

// Config configures a new Pool. TierSizes must be listed largest first and
// strictly decreasing; size(0) is the largest single allocation the pool
// will serve (spec.md section 3).
type Config struct {
	// TierSizes lists each tier's chunk size in bytes, largest first.
	TierSizes []int
	// PageSize is the fixed size of every backing page Supplier hands
	// out. It must be an integer multiple of every tier size.
	PageSize int
	// HeaderSize reserves bytes at the front of every chunk for an
	// externally-required header (spec.md sections 3 and 9) -- e.g. the
	// swap-entry header a compressed-swap cache stores ahead of the
	// compressed payload. It counts against the minimum tier size but is
	// otherwise opaque to the allocator.
	HeaderSize int
	// Supplier is the backing page-frame collaborator.
	Supplier pageframe.Supplier
	// Ops carries the eviction hook. Nil means no eviction hook is
	// registered; ReclaimPage will then always return InvalidArgument.
	Ops *Ops
}

// Pool is the allocator's top-level object: tier table, per-tier
// free-lists and page-LRUs, the pool-wide under-reclaim set, and the
// mutex covering all of it (spec.md section 3).
type Pool struct {
	mu sync.Mutex

	tierSizes  []int
	headerSize int
	pageSize   int
	supplier   pageframe.Supplier
	ops        *Ops

	freeLists    []*addrset.Set // one per tier, keyed by chunk address
	lrus         []*pagelru.LRU // one per tier
	underReclaim *addrset.Set   // pool-wide, keyed by chunk address

	pages     map[uint64]*pagelru.Page // side table keyed by page base address
	pageIndex *addrset.Set             // ordered page base addresses, for page_of lookups

	size uint64 // total bytes currently owned by the pool (I4)
}
