package pageframe

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ArenaSupplier is an in-memory Supplier: AllocPage allocates a fresh byte
// slice of the configured page size and derives a stable address from it
// the same way the teacher's own B-tree tests derive a page key from a
// slice (govetachun/go-mini-db's btree/test_btree.go:
// uint64(uintptr(unsafe.Pointer(&data[0])))). It is the backing-page
// "production" stand-in used by this repo's tests, benchmarks and
// cmd/ztierctl -- a real mmap/buddy-page supplier is out of scope per
// spec.md section 1.
type ArenaSupplier struct {
	pageSize int

	mu      sync.Mutex
	onLoan  map[uint64]*Page
	maxLive int // 0 means unbounded; used to simulate OutOfMemory in tests
}

// NewArenaSupplier returns a Supplier that hands out pageSize-byte pages
// from the Go heap. maxLive, if non-zero, bounds how many pages may be on
// loan at once -- AllocPage past that bound returns an error, letting
// tests exercise ztier's OutOfMemory path deterministically.
func NewArenaSupplier(pageSize int, maxLive int) *ArenaSupplier {
	return &ArenaSupplier{
		pageSize: pageSize,
		onLoan:   make(map[uint64]*Page),
		maxLive:  maxLive,
	}
}

func (a *ArenaSupplier) PageSize() int { return a.pageSize }

func (a *ArenaSupplier) AllocPage(flags Flags) (*Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.maxLive != 0 && len(a.onLoan) >= a.maxLive {
		return nil, errors.New("arena supplier exhausted")
	}

	buf := make([]byte, a.pageSize)
	base := uint64(uintptr(unsafe.Pointer(&buf[0])))
	p := &Page{Base: base, Bytes: buf}
	a.onLoan[base] = p
	return p, nil
}

func (a *ArenaSupplier) FreePage(p *Page) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.onLoan[p.Base]; !ok {
		return errors.Errorf("arena supplier: page %#x not on loan", p.Base)
	}
	delete(a.onLoan, p.Base)
	return nil
}

// LiveCount returns the number of pages currently on loan. Used by tests
// to assert leak-free teardown (spec.md property P6).
func (a *ArenaSupplier) LiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.onLoan)
}

// ParallelWarm pre-faults n pages concurrently and immediately frees them,
// touching every byte along the way. It has no effect on pool correctness;
// cmd/ztierctl uses it to warm the allocator's backing store before timing
// a benchmark run, fanning the work out with errgroup the way a pack
// repo's concurrent I/O helpers do.
func ParallelWarm(s Supplier, n int) error {
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			p, err := s.AllocPage(0)
			if err != nil {
				return err
			}
			for i := range p.Bytes {
				p.Bytes[i] = 0
			}
			return s.FreePage(p)
		})
	}
	return g.Wait()
}
