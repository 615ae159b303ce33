package consensus

import (
	"fmt"

	"github.com/pali-coin/node/internal/category"
)

// Rule enumerates why the engine rejected a block outright (as opposed to
// parking it as an orphan or staging it as a competing branch).
type Rule string

const (
	RuleTooDeep       Rule = "too-deep"
	RuleReorgTooDeep  Rule = "reorg-too-deep"
	RuleBadBlock      Rule = "bad-block"
	RuleBadTx         Rule = "bad-transaction"
	RuleOrphanPoolFull Rule = "orphan-pool-full"
)

// RejectError reports a block the engine refused to accept.
type RejectError struct {
	Rule Rule
	Err  error
}

func (e *RejectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("consensus: rejected (%s): %v", e.Rule, e.Err)
	}
	return fmt.Sprintf("consensus: rejected (%s)", e.Rule)
}

func (e *RejectError) Unwrap() error { return e.Err }

func (e *RejectError) Category() category.Category { return category.State }
func (e *RejectError) Reason() string               { return string(e.Rule) }

var _ category.Error = (*RejectError)(nil)
