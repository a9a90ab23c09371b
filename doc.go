// Package ztier implements a tiered slab-style allocator for compressed
// pages: a fixed set of chunk-size tiers, one ordered free-list and one
// page-LRU per tier, and a reclaim protocol that returns whole backing
// pages to a page-frame supplier by evicting their still-live allocations
// through a user-supplied callback.
//
// A Pool hands out opaque Handles via Alloc, accepts them back via Free,
// and -- under memory pressure -- gives pages back to the backing
// supplier via ReclaimPage, which cooperates with concurrent Alloc/Free
// calls and a potentially blocking eviction callback.
//
// The allocator itself never talks to a compressor or a swap cache; it
// only asks the internal/pageframe.Supplier collaborator for whole pages
// and calls back into a caller-supplied EvictFunc during reclaim. See
// SPEC_FULL.md and DESIGN.md for the full design.
package ztier
