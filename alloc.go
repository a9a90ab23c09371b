package ztier

import (
	"github.com/markmansi/ztier/internal/addrset"
	"github.com/markmansi/ztier/internal/pagelru"
	"github.com/markmansi/ztier/internal/pageframe"
	"github.com/markmansi/ztier/pkg/utils"
	"github.com/markmansi/ztier/pkg/zerrors"
)

// CreatePool creates a new pool per spec.md section 4.10: all free-lists
// and page-LRUs start empty, the under-reclaim set starts empty, size
// starts at zero, and cfg.Ops is stored verbatim (possibly nil, meaning no
// eviction hook).
//
// A malformed tier table is a programming error, not a runtime condition
// -- the original allocator catches it with BUILD_BUG_ON at compile time
// (spec.md section 9); this is its nearest runtime equivalent, so it
// panics via pkg/utils.Assert rather than returning an error.
func CreatePool(cfg Config) *Pool {
	utils.Assert(len(cfg.TierSizes) > 0, "ztier: at least one tier is required")
	for i := 1; i < len(cfg.TierSizes); i++ {
		utils.Assertf(cfg.TierSizes[i] < cfg.TierSizes[i-1],
			"ztier: tier sizes must be strictly decreasing (tier %d: %d >= tier %d: %d)",
			i, cfg.TierSizes[i], i-1, cfg.TierSizes[i-1])
	}
	utils.Assert(cfg.PageSize > 0, "ztier: page size must be positive")
	utils.Assertf(cfg.TierSizes[0] <= cfg.PageSize,
		"ztier: largest tier (%d) exceeds page size (%d)", cfg.TierSizes[0], cfg.PageSize)
	for i, sz := range cfg.TierSizes {
		utils.Assertf(sz > 0 && cfg.PageSize%sz == 0,
			"ztier: page size (%d) must be an integer multiple of tier %d size (%d)", cfg.PageSize, i, sz)
	}
	smallest := cfg.TierSizes[len(cfg.TierSizes)-1]
	utils.Assertf(smallest >= cfg.HeaderSize+minNodeSize,
		"ztier: smallest tier (%d) cannot hold a free-list node (%d bytes) plus the external header (%d bytes)",
		smallest, minNodeSize, cfg.HeaderSize)
	utils.Assert(cfg.Supplier != nil, "ztier: a page-frame supplier is required")
	utils.Assertf(cfg.PageSize == cfg.Supplier.PageSize(),
		"ztier: pool page size (%d) must match the supplier's page size (%d)", cfg.PageSize, cfg.Supplier.PageSize())

	p := &Pool{
		tierSizes:    append([]int(nil), cfg.TierSizes...),
		headerSize:   cfg.HeaderSize,
		pageSize:     cfg.PageSize,
		supplier:     cfg.Supplier,
		ops:          cfg.Ops,
		underReclaim: addrset.New(),
		pages:        make(map[uint64]*pagelru.Page),
		pageIndex:    addrset.New(),
	}
	p.freeLists = make([]*addrset.Set, len(p.tierSizes))
	p.lrus = make([]*pagelru.LRU, len(p.tierSizes))
	for t := range p.tierSizes {
		p.freeLists[t] = addrset.New()
		p.lrus[t] = &pagelru.LRU{}
	}
	return p
}

// DestroyPool tears the pool down. The pool must already be empty of live
// allocations and have nothing under reclaim (spec.md section 4.10).
func (p *Pool) DestroyPool() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	utils.Assert(p.underReclaim.Len() == 0, "ztier: destroy called with chunks still under reclaim")

	for t, lru := range p.lrus {
		chunkSize := p.tierSizes[t]
		for !lru.Empty() {
			page := lru.Tail()

			// Every chunk of this page must be free: destroy's precondition
			// is that all allocations were already returned (I1, section 4.10).
			var liveInPage int
			for off := 0; off < p.pageSize; off += chunkSize {
				if !p.freeLists[t].Contains(addrset.Addr(page.Base + uint64(off))) {
					liveInPage++
				}
			}
			utils.Assertf(liveInPage == 0, "ztier: destroy called with %d live chunk(s) still allocated", liveInPage)

			p.freeLists[t].MoveRange(nil, addrset.Addr(page.Base), addrset.Addr(page.Base+uint64(p.pageSize)))
			lru.Remove(page)
			if err := p.supplier.FreePage(page.Frame); err != nil {
				return err
			}
			delete(p.pages, page.Base)
			p.pageIndex.Remove(addrset.Addr(page.Base))
			utils.Assertf(p.size >= uint64(p.pageSize), "ztier: pool size underflow")
			p.size -= uint64(p.pageSize)
		}
	}
	return nil
}

// GetPoolSize returns the total bytes currently owned by the pool (I4).
func (p *Pool) GetPoolSize() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Alloc implements spec.md section 4.4. It never blocks while holding the
// pool mutex: the only blocking step, acquiring a fresh backing page, runs
// with the mutex released.
func (p *Pool) Alloc(size int, flags pageframe.Flags) (Handle, error) {
	if flags&pageframe.HighMem != 0 {
		return 0, zerrors.InvalidArgument("HighMem pages are not directly addressable")
	}

	p.mu.Lock()
	tier, err := p.selectTier(size)
	if err != nil {
		p.mu.Unlock()
		return 0, err
	}

	free := p.freeLists[tier]
	if free.Len() == 0 {
		p.mu.Unlock()

		frame, err := p.supplier.AllocPage(flags)
		if err != nil {
			return 0, zerrors.OutOfMemory(err)
		}

		p.mu.Lock()
		p.splitPageLocked(frame, tier)
	}

	addr, ok := free.First()
	utils.Assert(ok, "ztier: free-list empty immediately after a page split")
	free.Remove(addr)
	p.mu.Unlock()

	return Handle(addr), nil
}

// splitPageLocked implements spec.md section 4.3. Caller holds p.mu.
func (p *Pool) splitPageLocked(frame *pageframe.Page, tier int) {
	page := &pagelru.Page{Base: frame.Base, Tier: tier, Frame: frame}
	p.pages[frame.Base] = page
	p.pageIndex.Insert(addrset.Addr(frame.Base))
	p.lrus[tier].PushFront(page)

	chunkSize := p.tierSizes[tier]
	for off := 0; off < p.pageSize; off += chunkSize {
		p.freeLists[tier].Insert(addrset.Addr(frame.Base + uint64(off)))
	}
	p.size += uint64(p.pageSize)
}

// Free implements spec.md section 4.5. It never blocks and never touches
// the backing-page supplier or the eviction hook.
func (p *Pool) Free(handle Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	page := p.pageOfLocked(handle)
	utils.Assertf(uint64(handle)%uint64(p.tierSizes[page.Tier]) == 0,
		"ztier: handle %#x is not aligned to tier %d's chunk size", handle, page.Tier)

	if page.Reclaim {
		p.underReclaim.Insert(addrset.Addr(handle))
	} else {
		p.freeLists[page.Tier].Insert(addrset.Addr(handle))
	}
}

// Map returns a byte slice view of the chunk handle identifies (spec.md
// section 4.9). Unmap is a no-op, preserved only for interface
// compatibility with pooled-allocator consumers.
func (p *Pool) Map(handle Handle) []byte {
	p.mu.Lock()
	page := p.pageOfLocked(handle)
	base, tier, frame := page.Base, page.Tier, page.Frame
	p.mu.Unlock()

	offset := uint64(handle) - base
	size := uint64(p.tierSizes[tier])
	return frame.Bytes[offset : offset+size]
}

// Unmap is a no-op (spec.md section 4.9).
func (p *Pool) Unmap(handle Handle) {}

// pageOfLocked resolves the backing page owning handle. Caller holds p.mu.
func (p *Pool) pageOfLocked(handle Handle) *pagelru.Page {
	base, ok := p.pageIndex.Floor(addrset.Addr(handle))
	utils.Assertf(ok, "ztier: handle %#x does not belong to any page in this pool", handle)
	page, ok := p.pages[uint64(base)]
	utils.Assertf(ok, "ztier: page index inconsistent for base %#x", base)
	utils.Assertf(uint64(handle) < page.Base+uint64(p.pageSize),
		"ztier: handle %#x is past the end of its page", handle)
	return page
}

func (p *Pool) allTiersEmptyLocked() bool {
	for _, lru := range p.lrus {
		if !lru.Empty() {
			return false
		}
	}
	return true
}
