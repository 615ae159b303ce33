package chainstore

import (
	"fmt"

	"github.com/pali-coin/node/internal/category"
)

// Rule enumerates why a chain store operation failed.
type Rule string

const (
	RuleMissingColumnFamily Rule = "missing-column-family"
	RuleCorrupt             Rule = "corrupt-record"
	RuleWriteFailed         Rule = "write-failed"
	RuleNotFound            Rule = "not-found"
)

// PersistError reports a failure reading or writing the underlying store.
type PersistError struct {
	Rule Rule
	Err  error
}

func (e *PersistError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chainstore: %s: %v", e.Rule, e.Err)
	}
	return fmt.Sprintf("chainstore: %s", e.Rule)
}

func (e *PersistError) Unwrap() error { return e.Err }

func (e *PersistError) Category() category.Category { return category.Persistence }
func (e *PersistError) Reason() string               { return string(e.Rule) }

var _ category.Error = (*PersistError)(nil)
