// Package pageframe defines the backing page-frame supplier contract
// spec.md section 1 calls alloc_page/free_page and marks out of scope as
// an external collaborator, plus one reference implementation the pool can
// be exercised against.
package pageframe

// Flags are forwarded opaquely from ztier.Alloc to the Supplier, except for
// HighMem which ztier itself rejects (spec.md section 6: "HIGHMEM is
// rejected by alloc with InvalidArgument").
type Flags uint32

const (
	// HighMem requests memory that need not be directly addressable. Pool
	// pages must always be directly addressable, so ztier.Alloc rejects
	// any request carrying this flag before ever reaching a Supplier.
	HighMem Flags = 1 << iota
)

// Page is one backing page handed out by a Supplier. Base is a stable
// integer address for the first byte of Bytes, used as the allocator's
// chunk-addressing space; Bytes is the actual storage.
type Page struct {
	Base  uint64
	Bytes []byte
}

// Supplier is the backing page-frame collaborator: it hands out and takes
// back whole pages of a fixed size. Implementations must return pages
// whose Base is stable and unique among pages currently on loan.
type Supplier interface {
	// AllocPage returns a fresh page, or an error if none is available.
	AllocPage(flags Flags) (*Page, error)
	// FreePage returns a page previously obtained from AllocPage.
	FreePage(p *Page) error
	// PageSize returns the fixed size, in bytes, of every page this
	// supplier hands out.
	PageSize() int
}
