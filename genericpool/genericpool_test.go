package genericpool

import (
	"testing"

	"github.com/markmansi/ztier"
	"github.com/markmansi/ztier/internal/pageframe"
	"github.com/markmansi/ztier/pkg/zerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPageSize = 4096

var testTiers = []int{2048, 1024, 256}

func newTestConfig(supplier pageframe.Supplier) ztier.Config {
	return ztier.Config{
		TierSizes:  testTiers,
		PageSize:   testPageSize,
		HeaderSize: 8,
		Supplier:   supplier,
	}
}

// recordingEvictor frees every handle it is handed and records it.
type recordingEvictor struct {
	pool    *ztier.Pool
	evicted []ztier.Handle
}

func (e *recordingEvictor) Evict(handle ztier.Handle) error {
	e.evicted = append(e.evicted, handle)
	e.pool.Free(handle)
	return nil
}

func TestAdapterMallocFreeRoundTrip(t *testing.T) {
	supplier := pageframe.NewArenaSupplier(testPageSize, 0)
	a := New(newTestConfig(supplier), nil)

	h, err := a.Malloc(500)
	require.NoError(t, err)
	a.Free(h)

	assert.Equal(t, uint64(testPageSize), a.TotalSize())
}

func TestAdapterMapUnmap(t *testing.T) {
	supplier := pageframe.NewArenaSupplier(testPageSize, 0)
	a := New(newTestConfig(supplier), nil)

	h, err := a.Malloc(10)
	require.NoError(t, err)
	data := a.Map(h)
	assert.Len(t, data, 256)
	a.Unmap(h)
}

func TestAdapterShrinkReclaimsPages(t *testing.T) {
	supplier := pageframe.NewArenaSupplier(testPageSize, 0)

	evictor := &recordingEvictor{}
	a := New(newTestConfig(supplier), evictor)
	evictor.pool = a.pool

	h, err := a.Malloc(500)
	require.NoError(t, err)
	a.Free(h)

	reclaimed, err := a.Shrink(1)
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)
	assert.Equal(t, uint64(0), a.TotalSize())
}

func TestAdapterShrinkStopsOnFailure(t *testing.T) {
	supplier := pageframe.NewArenaSupplier(testPageSize, 0)
	a := New(newTestConfig(supplier), nil)

	_, err := a.Malloc(500)
	require.NoError(t, err)

	reclaimed, err := a.Shrink(2)
	assert.Equal(t, 0, reclaimed)
	assert.True(t, zerrors.Is(err, zerrors.CodeTryAgain))
}

func TestAdapterDestroy(t *testing.T) {
	supplier := pageframe.NewArenaSupplier(testPageSize, 0)
	a := New(newTestConfig(supplier), nil)

	h, err := a.Malloc(500)
	require.NoError(t, err)
	a.Free(h)

	require.NoError(t, a.Destroy())
	assert.Equal(t, 0, supplier.LiveCount())
}
