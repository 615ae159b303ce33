package txn

import (
	"fmt"

	"github.com/pali-coin/node/internal/category"
)

// Rule enumerates the specific validation rule a Transaction failed.
type Rule string

const (
	RuleZeroAmount       Rule = "zero-amount"
	RuleFeeTooHigh       Rule = "fee-exceeds-half"
	RuleSelfTransfer     Rule = "from-equals-to"
	RuleWrongChainID     Rule = "wrong-chain-id"
	RuleBadCoinbaseShape Rule = "bad-coinbase-shape"
	RuleExpired          Rule = "expired"
	RuleOversizeData     Rule = "oversize-data"
	RuleBadSignature     Rule = "bad-signature"
	RuleBadPublicKey     Rule = "bad-public-key"
)

// ValidationError reports a Transaction that failed a shape or signature
// validation rule.
type ValidationError struct {
	TxID ID
	Rule Rule
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("txn: validation failed for %s: %s", e.TxID, e.Rule)
}

// Category implements category.Error.
func (e *ValidationError) Category() category.Category { return category.Validation }

// Reason implements category.Error.
func (e *ValidationError) Reason() string { return string(e.Rule) }

var _ category.Error = (*ValidationError)(nil)
