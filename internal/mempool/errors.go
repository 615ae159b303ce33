package mempool

import (
	"fmt"

	"github.com/pali-coin/node/internal/category"
)

// Reason enumerates why Add rejected a transaction.
type Reason string

const (
	ReasonFull                Reason = "full"
	ReasonDuplicate           Reason = "duplicate"
	ReasonDoubleSpend         Reason = "double-spend"
	ReasonInsufficientBalance Reason = "insufficient-balance"
)

// RejectError reports why a transaction could not be added to the pool.
type RejectError struct {
	Why Reason
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("mempool: rejected (%s)", e.Why)
}

func (e *RejectError) Category() category.Category { return category.State }
func (e *RejectError) Reason() string               { return string(e.Why) }

var _ category.Error = (*RejectError)(nil)
