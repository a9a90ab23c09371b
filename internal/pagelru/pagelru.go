// Package pagelru holds the per-page metadata spec.md section 3 describes
// (the tier a page is split into, its reclaim bit, and its LRU link) and
// the per-tier page-LRU those pages are threaded onto.
//
// spec.md section 9 notes that implementations which cannot stash tier and
// reclaim directly on the backing page descriptor "must maintain a
// parallel side-table keyed by page address" -- Page here *is* that
// side-table entry, since this module's backing pages
// (internal/pageframe.Page) are plain Go values with no room of their own
// to carry allocator-private state.
package pagelru

import "github.com/markmansi/ztier/internal/pageframe"

// Page is one backing page's allocator-private metadata: which tier split
// it, whether it is currently the subject of reclaim, and its link into
// that tier's LRU (newer points toward the list head, i.e. the most
// recently split page; older points toward the tail).
type Page struct {
	Base    uint64
	Tier    int
	Reclaim bool
	Frame   *pageframe.Page

	newer, older *Page
	inList       bool
}

// LRU is a doubly-linked list of pages ordered from most- to
// least-recently split, matching spec.md section 2's "Page-LRUs" and
// section 4.3's "Prepend P to tier t's page-LRU".
type LRU struct {
	head, tail *Page // head: most recently split; tail: least recently split
	size       int
}

// PushFront prepends p to the list as the most-recently split page.
func (l *LRU) PushFront(p *Page) {
	p.older = l.head
	p.newer = nil
	if l.head != nil {
		l.head.newer = p
	}
	l.head = p
	if l.tail == nil {
		l.tail = p
	}
	p.inList = true
	l.size++
}

// Remove unlinks p from the list. It is a no-op if p is not currently
// linked into this list.
func (l *LRU) Remove(p *Page) {
	if !p.inList {
		return
	}
	if p.older != nil {
		p.older.newer = p.newer
	} else {
		l.tail = p.newer
	}
	if p.newer != nil {
		p.newer.older = p.older
	} else {
		l.head = p.older
	}
	p.older, p.newer = nil, nil
	p.inList = false
	l.size--
}

// Tail returns the least-recently split page, or nil if the list is empty.
func (l *LRU) Tail() *Page { return l.tail }

// TowardHead returns the page immediately closer to the head than p (i.e.
// the page split more recently than p), or nil if p is already the head.
// Used by victim selection (spec.md section 4.7) to walk from the tail
// back toward the head one candidate at a time.
func (l *LRU) TowardHead(p *Page) *Page { return p.newer }

// Empty reports whether the list has no pages.
func (l *LRU) Empty() bool { return l.head == nil }

// Len returns the number of pages currently linked into the list.
func (l *LRU) Len() int { return l.size }
