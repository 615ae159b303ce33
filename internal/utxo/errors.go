package utxo

import (
	"fmt"

	"github.com/pali-coin/node/internal/category"
)

// Rule enumerates why applying a block to the UTXO set failed.
type Rule string

const (
	RuleUnknownOutput     Rule = "unknown-output" // spending a nonexistent entry
	RuleImmatureCoinbase  Rule = "immature-coinbase"
	RuleInsufficientFunds Rule = "insufficient-funds"
)

// ApplyError reports a block that could not be applied to the UTXO set. A
// failure midway aborts the whole batch; partial application is never
// observable.
type ApplyError struct {
	Rule  Rule
	Vout  OutPoint
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("utxo: apply failed (%s) at %s", e.Rule, e.Vout)
}

func (e *ApplyError) Category() category.Category { return category.State }
func (e *ApplyError) Reason() string              { return string(e.Rule) }

var _ category.Error = (*ApplyError)(nil)
