// Package addrset implements the ordered address set spec.md section 4.1
// describes: a red-black tree of chunk addresses supporting insert, remove,
// first/last, next/prev, ceil/floor in O(log n) worst case, and move_range
// in O(log n) per element moved.
//
// Every tier's free-list and the pool-wide under-reclaim set are one Set
// each. Callers (the ztier package) hold the pool mutex around every method
// here; Set itself does no locking of its own.
package addrset

import "github.com/markmansi/ztier/pkg/utils"

// Addr is a chunk's starting address -- the key ordered sets are keyed by.
// It is also the Handle type the allocator hands to callers.
type Addr uint64

type color bool

const (
	red   color = true
	black color = false
)

type node struct {
	addr                Addr
	left, right, parent *node
	color               color
}

// Set is a balanced ordered set of chunk addresses.
//
// The tree nodes here are ordinary Go-allocated structs keyed by address,
// not laid out inside the chunk bytes they describe the way the original
// C allocator does it (see DESIGN.md) -- the set's external behavior
// (content, ordering, complexity) is what spec.md section 4.1 specifies,
// and that is what this type provides.
type Set struct {
	root *node
	size int
	// index speeds up the by-address node lookup behind Contains/Remove/
	// Next/Prev from O(log n) tree descent down to O(1), at the cost of one
	// extra map entry per free chunk. Remove's rebalancing and Next/Prev's
	// successor walk still take O(log n).
	index map[Addr]*node
}

// New returns an empty ordered address set.
func New() *Set {
	return &Set{index: make(map[Addr]*node)}
}

// Len returns the number of addresses currently in the set.
func (s *Set) Len() int { return s.size }

// Contains reports whether addr is a member of the set.
func (s *Set) Contains(addr Addr) bool {
	_, ok := s.index[addr]
	return ok
}

// Insert adds addr to the set. Inserting an address already present
// indicates corruption (a chunk free-listed twice) and panics, per
// spec.md section 4.1: "insert(p) must reject p if p is already present".
func (s *Set) Insert(addr Addr) {
	utils.Assertf(!s.Contains(addr), "addrset: address %#x already present", addr)

	n := &node{addr: addr, color: red}
	s.index[addr] = n

	if s.root == nil {
		n.color = black
		s.root = n
		s.size++
		return
	}

	cur := s.root
	var parent *node
	for cur != nil {
		parent = cur
		if addr < cur.addr {
			cur = cur.left
		} else {
			cur = cur.right
		}
	}
	n.parent = parent
	if addr < parent.addr {
		parent.left = n
	} else {
		parent.right = n
	}
	s.size++
	s.insertFixup(n)
}

// Remove deletes addr from the set if present; it is a no-op otherwise.
func (s *Set) Remove(addr Addr) {
	n, ok := s.index[addr]
	if !ok {
		return
	}
	delete(s.index, addr)
	s.deleteNode(n)
	s.size--
}

// First returns the least address in the set.
func (s *Set) First() (Addr, bool) {
	n := treeMin(s.root)
	if n == nil {
		return 0, false
	}
	return n.addr, true
}

// Last returns the greatest address in the set.
func (s *Set) Last() (Addr, bool) {
	n := treeMax(s.root)
	if n == nil {
		return 0, false
	}
	return n.addr, true
}

// Next returns the least address strictly greater than addr, if addr is a
// member of the set.
func (s *Set) Next(addr Addr) (Addr, bool) {
	n, ok := s.index[addr]
	if !ok {
		return 0, false
	}
	succ := successor(n)
	if succ == nil {
		return 0, false
	}
	return succ.addr, true
}

// Prev returns the greatest address strictly less than addr, if addr is a
// member of the set.
func (s *Set) Prev(addr Addr) (Addr, bool) {
	n, ok := s.index[addr]
	if !ok {
		return 0, false
	}
	pred := predecessor(n)
	if pred == nil {
		return 0, false
	}
	return pred.addr, true
}

// Ceil returns the least element of the set that is >= addr.
func (s *Set) Ceil(addr Addr) (Addr, bool) {
	cur := s.root
	var best *node
	for cur != nil {
		if cur.addr == addr {
			return cur.addr, true
		}
		if cur.addr > addr {
			best = cur
			cur = cur.left
		} else {
			cur = cur.right
		}
	}
	if best == nil {
		return 0, false
	}
	return best.addr, true
}

// Floor returns the greatest element of the set that is <= addr.
func (s *Set) Floor(addr Addr) (Addr, bool) {
	cur := s.root
	var best *node
	for cur != nil {
		if cur.addr == addr {
			return cur.addr, true
		}
		if cur.addr < addr {
			best = cur
			cur = cur.right
		} else {
			cur = cur.left
		}
	}
	if best == nil {
		return 0, false
	}
	return best.addr, true
}

// MoveRange moves every element e of s with lo <= e < hi into dst. If dst
// is nil, the elements are discarded instead. from and to must be distinct
// sets; self-move is not supported (spec.md section 4.1).
func (s *Set) MoveRange(dst *Set, lo, hi Addr) {
	utils.Assertf(dst != s, "addrset: MoveRange called with from == to")

	addr, ok := s.Ceil(lo)
	for ok && addr < hi {
		next, hasNext := s.Next(addr)
		s.Remove(addr)
		if dst != nil {
			dst.Insert(addr)
		}
		addr, ok = next, hasNext
	}
}

// Walk calls fn for every address in the set in ascending order. fn must
// not mutate the set.
func (s *Set) Walk(fn func(Addr)) {
	var rec func(*node)
	rec = func(n *node) {
		if n == nil {
			return
		}
		rec(n.left)
		fn(n.addr)
		rec(n.right)
	}
	rec(s.root)
}

func treeMin(n *node) *node {
	if n == nil {
		return nil
	}
	for n.left != nil {
		n = n.left
	}
	return n
}

func treeMax(n *node) *node {
	if n == nil {
		return nil
	}
	for n.right != nil {
		n = n.right
	}
	return n
}

func successor(n *node) *node {
	if n.right != nil {
		return treeMin(n.right)
	}
	p := n.parent
	for p != nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func predecessor(n *node) *node {
	if n.left != nil {
		return treeMax(n.left)
	}
	p := n.parent
	for p != nil && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

func nodeColor(n *node) color {
	if n == nil {
		return black
	}
	return n.color
}

func (s *Set) rotateLeft(x *node) {
	y := x.right
	x.right = y.left
	if y.left != nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == nil {
		s.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (s *Set) rotateRight(x *node) {
	y := x.left
	x.left = y.right
	if y.right != nil {
		y.right.parent = x
	}
	y.parent = x.parent
	if x.parent == nil {
		s.root = y
	} else if x == x.parent.right {
		x.parent.right = y
	} else {
		x.parent.left = y
	}
	y.right = x
	x.parent = y
}

func (s *Set) insertFixup(z *node) {
	for nodeColor(z.parent) == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if nodeColor(y) == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					s.rotateLeft(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				s.rotateRight(z.parent.parent)
			}
		} else {
			y := z.parent.parent.left
			if nodeColor(y) == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					s.rotateRight(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				s.rotateLeft(z.parent.parent)
			}
		}
	}
	s.root.color = black
}

// transplant replaces the subtree rooted at u with the subtree rooted at v.
func (s *Set) transplant(u, v *node) {
	if u.parent == nil {
		s.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	if v != nil {
		v.parent = u.parent
	}
}

func (s *Set) deleteNode(z *node) {
	y := z
	yOriginalColor := nodeColor(y)
	var x, xParent *node

	if z.left == nil {
		x = z.right
		xParent = z.parent
		s.transplant(z, z.right)
	} else if z.right == nil {
		x = z.left
		xParent = z.parent
		s.transplant(z, z.left)
	} else {
		y = treeMin(z.right)
		yOriginalColor = nodeColor(y)
		x = y.right
		if y.parent == z {
			xParent = y
		} else {
			xParent = y.parent
			s.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		s.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yOriginalColor == black {
		s.deleteFixup(x, xParent)
	}
}

// deleteFixup restores the red-black properties after deleteNode. x may be
// nil, in which case xParent records where x would have hung so the fixup
// can still walk back up the tree.
func (s *Set) deleteFixup(x, xParent *node) {
	for x != s.root && nodeColor(x) == black {
		if xParent == nil {
			break
		}
		if x == xParent.left {
			w := xParent.right
			if nodeColor(w) == red {
				w.color = black
				xParent.color = red
				s.rotateLeft(xParent)
				w = xParent.right
			}
			if w == nil {
				x = xParent
				xParent = x.parent
				continue
			}
			if nodeColor(w.left) == black && nodeColor(w.right) == black {
				w.color = red
				x = xParent
				xParent = x.parent
			} else {
				if nodeColor(w.right) == black {
					if w.left != nil {
						w.left.color = black
					}
					w.color = red
					s.rotateRight(w)
					w = xParent.right
				}
				w.color = xParent.color
				xParent.color = black
				if w.right != nil {
					w.right.color = black
				}
				s.rotateLeft(xParent)
				x = s.root
				xParent = nil
			}
		} else {
			w := xParent.left
			if nodeColor(w) == red {
				w.color = black
				xParent.color = red
				s.rotateRight(xParent)
				w = xParent.left
			}
			if w == nil {
				x = xParent
				xParent = x.parent
				continue
			}
			if nodeColor(w.right) == black && nodeColor(w.left) == black {
				w.color = red
				x = xParent
				xParent = x.parent
			} else {
				if nodeColor(w.left) == black {
					if w.right != nil {
						w.right.color = black
					}
					w.color = red
					s.rotateLeft(w)
					w = xParent.left
				}
				w.color = xParent.color
				xParent.color = black
				if w.left != nil {
					w.left.color = black
				}
				s.rotateRight(xParent)
				x = s.root
				xParent = nil
			}
		}
	}
	if x != nil {
		x.color = black
	}
}
