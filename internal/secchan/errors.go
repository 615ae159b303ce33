package secchan

import (
	"fmt"

	"github.com/pali-coin/node/internal/category"
)

// Rule enumerates why a secure channel operation failed.
type Rule string

const (
	RuleKeyParse     Rule = "key-parse"
	RuleHKDF         Rule = "hkdf"
	RuleAEADDecrypt  Rule = "aead-decrypt"
	RuleMACMismatch  Rule = "mac-mismatch"
	RuleReplay       Rule = "replay"
	RuleBadState     Rule = "bad-state"
	RuleShortMessage Rule = "short-message"
)

// CryptoError reports a failure in the handshake, key schedule, framing, or
// rekey path. A CryptoError from Handshake comes with no channel; one from
// Seal or Open does not close the channel.
type CryptoError struct {
	Rule Rule
	Err  error
}

func (e *CryptoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("secchan: %s: %v", e.Rule, e.Err)
	}
	return fmt.Sprintf("secchan: %s", e.Rule)
}

func (e *CryptoError) Unwrap() error { return e.Err }

func (e *CryptoError) Category() category.Category { return category.Crypto }

func (e *CryptoError) Reason() string { return string(e.Rule) }

var _ category.Error = (*CryptoError)(nil)
