package peerlink

import (
	"errors"
	"fmt"

	"github.com/pali-coin/node/internal/category"
)

var (
	errResponseTimeout = errors.New("timed out waiting for response")
	errPeerClosed      = errors.New("peer closed")
)

// Rule enumerates why a peer-link operation failed.
type Rule string

const (
	RuleDial          Rule = "dial"
	RuleHandshake     Rule = "handshake"
	RuleFrame         Rule = "frame"
	RuleProtocol      Rule = "protocol"
	RuleBanned        Rule = "banned"
	RuleSendQueueFull Rule = "send-queue-full"
)

// NetError reports a failure on a peer connection. A NetError is terminal
// for the peer it occurred on; it never propagates to other peers or stops
// the server.
type NetError struct {
	Rule Rule
	Err  error
}

func (e *NetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("peerlink: %s: %v", e.Rule, e.Err)
	}
	return fmt.Sprintf("peerlink: %s", e.Rule)
}

func (e *NetError) Unwrap() error { return e.Err }

func (e *NetError) Category() category.Category { return category.NetworkIO }

func (e *NetError) Reason() string { return string(e.Rule) }

var _ category.Error = (*NetError)(nil)
