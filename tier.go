package ztier

import (
	"fmt"

	"github.com/markmansi/ztier/pkg/zerrors"
)

// selectTier implements spec.md section 4.2's tier-selection rule: the
// smallest tier whose chunk size is large enough to hold n bytes.
func (p *Pool) selectTier(n int) (int, error) {
	if n == 0 {
		return 0, zerrors.InvalidArgument("size must be greater than zero")
	}
	if n > p.tierSizes[0] {
		return 0, zerrors.TooLarge(fmt.Sprintf("size %d exceeds the largest tier (%d bytes)", n, p.tierSizes[0]))
	}
	for t := len(p.tierSizes) - 1; t >= 0; t-- {
		if p.tierSizes[t] >= n {
			return t, nil
		}
	}
	// Unreachable: n <= tierSizes[0] guarantees tier 0 always qualifies.
	return 0, zerrors.TooLarge(fmt.Sprintf("no tier fits size %d", n))
}
