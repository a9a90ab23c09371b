package ztier

import (
	"github.com/markmansi/ztier/internal/addrset"
	"github.com/markmansi/ztier/internal/pagelru"
	"github.com/markmansi/ztier/pkg/utils"
	"github.com/markmansi/ztier/pkg/zerrors"
)

// victimCursor tracks ReclaimPage's selection state across retries within
// a single call (spec.md section 4.7). It is local to each ReclaimPage
// invocation -- spec.md section 9's "rollback of current_tier/current_page"
// open question only requires the cursor to advance monotonically *within
// one call*, not across calls, so concurrent ReclaimPage calls each get
// their own cursor rather than contending over pool-level state.
type victimCursor struct {
	tier int
	page *pagelru.Page
}

// ReclaimPage implements the reclaim state machine of spec.md section 4.6.
// Each of up to retries attempts selects one victim page, isolates its
// free chunks, asks the eviction hook to drain its live chunks, and either
// frees the page or rolls the victim back and tries the next candidate.
func (p *Pool) ReclaimPage(retries int) error {
	p.mu.Lock()
	if p.ops == nil || p.ops.Evict == nil || retries <= 0 || p.allTiersEmptyLocked() {
		p.mu.Unlock()
		return zerrors.InvalidArgument("reclaim requires a registered eviction hook and a non-empty pool")
	}
	p.mu.Unlock()

	var cursor victimCursor
	for attempt := 0; attempt < retries; attempt++ {
		p.mu.Lock()
		victim := p.selectVictimLocked(&cursor)
		if victim == nil {
			p.mu.Unlock()
			return zerrors.TryAgain("no reclaimable victim page remained")
		}

		victim.Reclaim = true
		p.lrus[victim.Tier].Remove(victim)
		pageLo := addrset.Addr(victim.Base)
		pageHi := addrset.Addr(victim.Base + uint64(p.pageSize))
		p.freeLists[victim.Tier].MoveRange(p.underReclaim, pageLo, pageHi)
		p.mu.Unlock()

		chunkSize := p.tierSizes[victim.Tier]
		for off := 0; off < p.pageSize; off += chunkSize {
			handle := Handle(victim.Base + uint64(off))

			p.mu.Lock()
			alreadyAccounted := p.underReclaim.Contains(addrset.Addr(handle))
			p.mu.Unlock()
			if alreadyAccounted {
				continue
			}

			// The chunk is Allocated. Call the eviction hook with the
			// mutex released; the hook is expected to call Free(handle)
			// before returning nil, which routes it into under_reclaim
			// because Reclaim is now set (spec.md section 5, reentrancy).
			if err := p.ops.Evict(p, handle); err != nil {
				break
			}
		}

		p.mu.Lock()
		if p.pageFullyReclaimedLocked(victim) {
			p.underReclaim.MoveRange(nil, pageLo, pageHi)
			if err := p.supplier.FreePage(victim.Frame); err != nil {
				p.mu.Unlock()
				return zerrors.OutOfMemory(err)
			}
			delete(p.pages, victim.Base)
			p.pageIndex.Remove(addrset.Addr(victim.Base))
			utils.Assertf(p.size >= uint64(p.pageSize), "ztier: pool size underflow")
			p.size -= uint64(p.pageSize)
			p.mu.Unlock()
			return nil
		}

		// Partial eviction: roll the victim back to its pre-reclaim
		// observable state (spec.md section 4.6 property b).
		p.underReclaim.MoveRange(p.freeLists[victim.Tier], pageLo, pageHi)
		victim.Reclaim = false
		p.lrus[victim.Tier].PushFront(victim)
		p.mu.Unlock()
	}

	return zerrors.TryAgain("retry budget exhausted")
}

// selectVictimLocked implements spec.md section 4.7. Caller holds p.mu.
func (p *Pool) selectVictimLocked(cur *victimCursor) *pagelru.Page {
	for cur.tier < len(p.tierSizes) {
		lru := p.lrus[cur.tier]
		if lru.Empty() {
			cur.tier++
			cur.page = nil
			continue
		}

		var candidate *pagelru.Page
		if cur.page == nil {
			candidate = lru.Tail()
		} else {
			candidate = lru.TowardHead(cur.page)
		}
		if candidate == nil {
			cur.tier++
			cur.page = nil
			continue
		}

		cur.page = candidate
		if candidate.Reclaim {
			// Pages with Reclaim set are unlinked from every LRU (I3), so
			// this should be unreachable; kept to mirror spec.md section
			// 4.7's explicit "skip" step.
			continue
		}
		return candidate
	}
	return nil
}

// pageFullyReclaimedLocked reports whether every chunk of page is now in
// the under-reclaim set (spec.md section 4.8). Caller holds p.mu.
func (p *Pool) pageFullyReclaimedLocked(page *pagelru.Page) bool {
	chunkSize := p.tierSizes[page.Tier]
	for off := 0; off < p.pageSize; off += chunkSize {
		if !p.underReclaim.Contains(addrset.Addr(page.Base + uint64(off))) {
			return false
		}
	}
	return true
}
