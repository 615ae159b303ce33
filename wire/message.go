// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire implements the peer-link message set: a command enum, the
// concrete message types carried inside a secure channel, and their
// length-prefixed framing on the wire.
package wire

import "fmt"

// MaxFramePayload is the maximum bytes one length-prefixed frame may carry,
// regardless of what a particular message type additionally caps itself.
const MaxFramePayload = 1024 * 1024 * 32 // 32MB

// MessageCommand identifies the concrete type of a Message on the wire.
type MessageCommand uint32

const (
	CmdHello MessageCommand = iota
	CmdHelloAck
	CmdGetHeight
	CmdHeight
	CmdGetBlock
	CmdBlock
	CmdNewBlock
	CmdGetHeaders
	CmdHeaders
	CmdNewTransaction
	CmdGetTransactions
	CmdTransactions
	CmdGetBalance
	CmdBalance
	CmdGetTransactionHistory
	CmdTransactionHistory
	CmdGetPeers
	CmdPeers
	CmdGetTemplate
	CmdBlockTemplate
	CmdSubmitBlock
	CmdPing
	CmdPong
	CmdError
)

var commandNames = map[MessageCommand]string{
	CmdHello:                 "Hello",
	CmdHelloAck:              "HelloAck",
	CmdGetHeight:             "GetHeight",
	CmdHeight:                "Height",
	CmdGetBlock:              "GetBlock",
	CmdBlock:                 "Block",
	CmdNewBlock:              "NewBlock",
	CmdGetHeaders:            "GetHeaders",
	CmdHeaders:               "Headers",
	CmdNewTransaction:        "NewTransaction",
	CmdGetTransactions:       "GetTransactions",
	CmdTransactions:          "Transactions",
	CmdGetBalance:            "GetBalance",
	CmdBalance:               "Balance",
	CmdGetTransactionHistory: "GetTransactionHistory",
	CmdTransactionHistory:    "TransactionHistory",
	CmdGetPeers:              "GetPeers",
	CmdPeers:                 "Peers",
	CmdGetTemplate:           "GetTemplate",
	CmdBlockTemplate:         "BlockTemplate",
	CmdSubmitBlock:           "SubmitBlock",
	CmdPing:                  "Ping",
	CmdPong:                  "Pong",
	CmdError:                 "Error",
}

func (cmd MessageCommand) String() string {
	name, ok := commandNames[cmd]
	if !ok {
		name = "unknown command"
	}
	return fmt.Sprintf("%s [code %d]", name, uint32(cmd))
}

// Message is a peer-link message. A concrete type has complete control over
// its own payload encoding via encodeBody/decodeBody in messages.go.
type Message interface {
	Command() MessageCommand
}
