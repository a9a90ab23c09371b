package ztier

import (
	"math/rand"
	"testing"

	"github.com/markmansi/ztier/internal/addrset"
	"github.com/markmansi/ztier/internal/pageframe"
	"github.com/markmansi/ztier/pkg/zerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPageSize = 4096

var testTiers = []int{2048, 1024, 256}

func newTestPool(t *testing.T, ops *Ops) (*Pool, *pageframe.ArenaSupplier) {
	t.Helper()
	supplier := pageframe.NewArenaSupplier(testPageSize, 0)
	pool := CreatePool(Config{
		TierSizes:  testTiers,
		PageSize:   testPageSize,
		HeaderSize: 8,
		Supplier:   supplier,
		Ops:        ops,
	})
	return pool, supplier
}

// Seed scenario 1 (spec.md section 8): fast alloc/free round-trip.
func TestAllocFreeRoundTrip(t *testing.T) {
	pool, _ := newTestPool(t, nil)

	h, err := pool.Alloc(500, 0)
	require.NoError(t, err)
	pool.Free(h)

	assert.Equal(t, uint64(testPageSize), pool.GetPoolSize())

	pool.mu.Lock()
	assert.Equal(t, testPageSize/1024, pool.freeLists[1].Len())
	assert.Equal(t, 0, pool.freeLists[0].Len())
	assert.Equal(t, 0, pool.freeLists[2].Len())
	pool.mu.Unlock()
}

// Seed scenario 2: tier selection.
func TestTierSelection(t *testing.T) {
	pool, _ := newTestPool(t, nil)

	h1, err := pool.Alloc(1, 0)
	require.NoError(t, err)
	pool.mu.Lock()
	p1 := pool.pageOfLocked(h1)
	pool.mu.Unlock()
	assert.Equal(t, 2, p1.Tier) // 256-byte tier

	h2, err := pool.Alloc(257, 0)
	require.NoError(t, err)
	pool.mu.Lock()
	p2 := pool.pageOfLocked(h2)
	pool.mu.Unlock()
	assert.Equal(t, 1, p2.Tier) // 1024-byte tier

	_, err = pool.Alloc(2049, 0)
	assert.True(t, zerrors.Is(err, zerrors.CodeTooLarge))
}

func TestAllocZeroSizeIsInvalidArgument(t *testing.T) {
	pool, _ := newTestPool(t, nil)
	_, err := pool.Alloc(0, 0)
	assert.True(t, zerrors.Is(err, zerrors.CodeInvalidArgument))
}

func TestAllocHighMemIsInvalidArgument(t *testing.T) {
	pool, _ := newTestPool(t, nil)
	_, err := pool.Alloc(100, pageframe.HighMem)
	assert.True(t, zerrors.Is(err, zerrors.CodeInvalidArgument))
}

func TestAllocOutOfMemory(t *testing.T) {
	supplier := pageframe.NewArenaSupplier(testPageSize, 0)
	pool := CreatePool(Config{TierSizes: testTiers, PageSize: testPageSize, HeaderSize: 8, Supplier: supplier})

	// With a working supplier the first alloc succeeds and splits a page;
	// a second pool over a supplier that refuses every page must then
	// report OutOfMemory.
	_, err := pool.Alloc(500, 0)
	require.NoError(t, err)

	supplier2 := pageframe.NewArenaSupplier(testPageSize, 0)
	pool2 := CreatePool(Config{TierSizes: testTiers, PageSize: testPageSize, HeaderSize: 8, Supplier: &exhaustedSupplier{supplier2}})
	_, err = pool2.Alloc(500, 0)
	assert.True(t, zerrors.Is(err, zerrors.CodeOutOfMemory))
}

// exhaustedSupplier always refuses AllocPage, to exercise the OutOfMemory path.
type exhaustedSupplier struct {
	*pageframe.ArenaSupplier
}

func (s *exhaustedSupplier) AllocPage(flags pageframe.Flags) (*pageframe.Page, error) {
	return nil, assertErr{}
}

type assertErr struct{}

func (assertErr) Error() string { return "supplier refused" }

// Seed scenario 3: reclaim with all chunks free.
func TestReclaimAllFree(t *testing.T) {
	evicted := 0
	pool, supplier := newTestPool(t, &Ops{Evict: func(pool *Pool, handle Handle) error {
		evicted++
		return nil
	}})

	h, err := pool.Alloc(500, 0)
	require.NoError(t, err)
	pool.Free(h)

	err = pool.ReclaimPage(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pool.GetPoolSize())
	assert.Equal(t, 0, evicted)
	assert.Equal(t, 0, supplier.LiveCount())
}

// Seed scenario 4: reclaim with live chunks, all successfully evicted.
func TestReclaimWithLiveChunksEvicted(t *testing.T) {
	var a, b, c Handle

	var evictedSet map[Handle]bool
	pool, supplier := newTestPool(t, &Ops{Evict: func(pool *Pool, handle Handle) error {
		evictedSet[handle] = true
		pool.Free(handle)
		return nil
	}})
	evictedSet = make(map[Handle]bool)

	var err error
	a, err = pool.Alloc(500, 0)
	require.NoError(t, err)
	b, err = pool.Alloc(500, 0)
	require.NoError(t, err)
	c, err = pool.Alloc(500, 0)
	require.NoError(t, err)
	// a 4th chunk exists in the page (1024-byte tier, 4 chunks per page)
	// but is never allocated.

	pool.Free(c)

	err = pool.ReclaimPage(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pool.GetPoolSize())
	assert.Equal(t, 0, supplier.LiveCount())
	assert.True(t, evictedSet[a])
	assert.True(t, evictedSet[b])
	assert.False(t, evictedSet[c]) // c was already free, never handed to evict

	// a fresh alloc acquires a new page.
	_, err = pool.Alloc(500, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(testPageSize), pool.GetPoolSize())
}

// Seed scenario 5: reclaim rollback when a live chunk cannot be evicted.
// The hook refuses outright (without calling Free), so every previously
// live chunk in the victim page must land back exactly where it started.
func TestReclaimRollback(t *testing.T) {
	pool, supplier := newTestPool(t, &Ops{Evict: func(pool *Pool, handle Handle) error {
		return assertErr{}
	}})

	a, err := pool.Alloc(500, 0)
	require.NoError(t, err)
	b, err := pool.Alloc(500, 0)
	require.NoError(t, err)
	c, err := pool.Alloc(500, 0)
	require.NoError(t, err)
	pool.Free(c)

	err = pool.ReclaimPage(1)
	assert.True(t, zerrors.Is(err, zerrors.CodeTryAgain))
	assert.Equal(t, uint64(testPageSize), pool.GetPoolSize())
	assert.Equal(t, 1, supplier.LiveCount())

	// a, b remain allocated; c is free again and back in tier 1's free-list.
	pool.mu.Lock()
	page := pool.pageOfLocked(a)
	assert.False(t, page.Reclaim)
	assert.True(t, pool.freeLists[1].Contains(addrset.Addr(c)))
	assert.False(t, pool.freeLists[1].Contains(addrset.Addr(a)))
	assert.False(t, pool.freeLists[1].Contains(addrset.Addr(b)))
	pool.mu.Unlock()
}

func TestReclaimRequiresEvictionHook(t *testing.T) {
	pool, _ := newTestPool(t, nil)
	_, err := pool.Alloc(500, 0)
	require.NoError(t, err)

	err = pool.ReclaimPage(1)
	assert.True(t, zerrors.Is(err, zerrors.CodeInvalidArgument))
}

func TestReclaimRequiresNonEmptyPool(t *testing.T) {
	pool, _ := newTestPool(t, &Ops{Evict: func(pool *Pool, handle Handle) error { return nil }})
	err := pool.ReclaimPage(1)
	assert.True(t, zerrors.Is(err, zerrors.CodeInvalidArgument))
}

func TestMapReturnsChunkBytes(t *testing.T) {
	pool, _ := newTestPool(t, nil)
	h, err := pool.Alloc(10, 0)
	require.NoError(t, err)

	data := pool.Map(h)
	assert.Len(t, data, 256)
	data[0] = 0x42
	// mapping again must observe the same underlying bytes.
	assert.Equal(t, byte(0x42), pool.Map(h)[0])
	pool.Unmap(h)
}

// Property P6: destroying an empty pool leaves zero pages with the supplier.
func TestDestroyEmptyPoolLeakFree(t *testing.T) {
	pool, supplier := newTestPool(t, nil)
	h, err := pool.Alloc(500, 0)
	require.NoError(t, err)
	pool.Free(h)

	// destroy walks the page and frees it even though it was never
	// explicitly reclaimed, since all its chunks are free (section 4.10).
	require.NoError(t, pool.DestroyPool())
	assert.Equal(t, 0, supplier.LiveCount())
	assert.Equal(t, uint64(0), pool.GetPoolSize())
}

func TestDestroyWithLiveAllocationPanics(t *testing.T) {
	pool, _ := newTestPool(t, nil)
	_, err := pool.Alloc(500, 0)
	require.NoError(t, err)
	assert.Panics(t, func() { pool.DestroyPool() })
}

// Fuzz-style randomized op sequence (spec.md section 4.2 / SPEC_FULL.md
// section 9): repeatedly allocs at the named tier-boundary sizes --
// 0, 1, size(T-1), size(T-1)+1, size(0), size(0)+1 -- in random order,
// checking each one lands in the tier selectTier predicts, or fails with
// the right error code at the two boundaries that must fail.
func TestTierBoundarySizesFuzz(t *testing.T) {
	pool, _ := newTestPool(t, nil)

	largest := testTiers[0]
	smallest := testTiers[len(testTiers)-1]
	boundaries := []int{0, 1, smallest, smallest + 1, largest, largest + 1}

	rnd := rand.New(rand.NewSource(42))
	for iter := 0; iter < 500; iter++ {
		size := boundaries[rnd.Intn(len(boundaries))]
		h, err := pool.Alloc(size, 0)

		switch {
		case size == 0:
			assert.True(t, zerrors.Is(err, zerrors.CodeInvalidArgument))
		case size > largest:
			assert.True(t, zerrors.Is(err, zerrors.CodeTooLarge))
		default:
			require.NoError(t, err)
			pool.mu.Lock()
			tier := pool.pageOfLocked(h).Tier
			pool.mu.Unlock()
			assert.Equal(t, expectedTierForSize(size), tier)
			pool.Free(h)
		}
	}
}

func expectedTierForSize(size int) int {
	for t := len(testTiers) - 1; t >= 0; t-- {
		if testTiers[t] >= size {
			return t
		}
	}
	return 0
}
