package block

import (
	"fmt"

	"github.com/pali-coin/node/internal/category"
)

// Rule enumerates the specific consensus rule a Block failed.
type Rule string

const (
	RuleBadMerkleRoot     Rule = "bad-merkle-root"
	RuleInsufficientPoW   Rule = "insufficient-pow"
	RuleBadTimestamp      Rule = "bad-timestamp"
	RuleBadHeight         Rule = "bad-height"
	RuleNoCoinbase        Rule = "missing-coinbase"
	RuleExtraCoinbase     Rule = "extra-coinbase"
	RuleBadCoinbaseAmount Rule = "bad-coinbase-amount"
	RuleBadTransaction    Rule = "bad-transaction"
	RuleOversizeBlock     Rule = "oversize-block"
	RuleTooManyTxs        Rule = "too-many-transactions"
	RuleBadPrevHash       Rule = "bad-prev-hash"
)

// RuleError reports a Block that failed a validate() rule.
type RuleError struct {
	Rule Rule
	Err  error // optional wrapped detail, e.g. the per-transaction error
}

func (e *RuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("block: rule %s: %v", e.Rule, e.Err)
	}
	return fmt.Sprintf("block: rule %s", e.Rule)
}

func (e *RuleError) Unwrap() error { return e.Err }

// Category implements category.Error.
func (e *RuleError) Category() category.Category { return category.Validation }

// Reason implements category.Error.
func (e *RuleError) Reason() string { return string(e.Rule) }

var _ category.Error = (*RuleError)(nil)
