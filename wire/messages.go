package wire

import (
	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
)

// MsgHello is sent first by the dialing side of a peer link, after the
// secure channel handshake has already established an encrypted transport.
type MsgHello struct {
	ProtocolVersion uint32
	NodeID          primitives.Address
	ChainID         uint64
	UserAgent       string
}

func (*MsgHello) Command() MessageCommand { return CmdHello }

// MsgHelloAck answers MsgHello with the same shape in the other direction.
type MsgHelloAck struct {
	ProtocolVersion uint32
	NodeID          primitives.Address
	ChainID         uint64
	UserAgent       string
}

func (*MsgHelloAck) Command() MessageCommand { return CmdHelloAck }

// MsgGetHeight asks the peer for its current tip.
type MsgGetHeight struct{}

func (*MsgGetHeight) Command() MessageCommand { return CmdGetHeight }

// MsgHeight answers MsgGetHeight.
type MsgHeight struct {
	Height uint64
	Hash   primitives.Hash
}

func (*MsgHeight) Command() MessageCommand { return CmdHeight }

// MsgGetBlock requests one block by hash.
type MsgGetBlock struct {
	Hash primitives.Hash
}

func (*MsgGetBlock) Command() MessageCommand { return CmdGetBlock }

// MsgBlock answers MsgGetBlock.
type MsgBlock struct {
	Block *block.Block
}

func (*MsgBlock) Command() MessageCommand { return CmdBlock }

// MsgNewBlock announces a newly accepted block to peers, unsolicited.
type MsgNewBlock struct {
	Block *block.Block
}

func (*MsgNewBlock) Command() MessageCommand { return CmdNewBlock }

// MsgGetHeaders carries a sparse locator and an optional stop hash, asking
// the peer for the headers between the common ancestor and its tip.
type MsgGetHeaders struct {
	Locator  []primitives.Hash
	StopHash primitives.Hash
}

func (*MsgGetHeaders) Command() MessageCommand { return CmdGetHeaders }

// MsgHeaders answers MsgGetHeaders.
type MsgHeaders struct {
	Headers []block.Header
}

func (*MsgHeaders) Command() MessageCommand { return CmdHeaders }

// MsgNewTransaction announces a transaction admitted to the sender's
// mempool, unsolicited.
type MsgNewTransaction struct {
	Transaction *txn.Transaction
}

func (*MsgNewTransaction) Command() MessageCommand { return CmdNewTransaction }

// MsgGetTransactions requests a batch of transactions by id.
type MsgGetTransactions struct {
	IDs []txn.ID
}

func (*MsgGetTransactions) Command() MessageCommand { return CmdGetTransactions }

// MsgTransactions answers MsgGetTransactions.
type MsgTransactions struct {
	Transactions []*txn.Transaction
}

func (*MsgTransactions) Command() MessageCommand { return CmdTransactions }

// MsgGetBalance asks for an address's confirmed balance.
type MsgGetBalance struct {
	Address primitives.Address
}

func (*MsgGetBalance) Command() MessageCommand { return CmdGetBalance }

// MsgBalance answers MsgGetBalance.
type MsgBalance struct {
	Address primitives.Address
	Amount  uint64
}

func (*MsgBalance) Command() MessageCommand { return CmdBalance }

// MsgGetTransactionHistory asks for an address's recent transaction
// history, most recent first.
type MsgGetTransactionHistory struct {
	Address primitives.Address
	Limit   uint32
}

func (*MsgGetTransactionHistory) Command() MessageCommand { return CmdGetTransactionHistory }

// MsgTransactionHistory answers MsgGetTransactionHistory.
type MsgTransactionHistory struct {
	Transactions []*txn.Transaction
}

func (*MsgTransactionHistory) Command() MessageCommand { return CmdTransactionHistory }

// MsgGetPeers asks for a sample of addresses the peer knows about.
type MsgGetPeers struct{}

func (*MsgGetPeers) Command() MessageCommand { return CmdGetPeers }

// MsgPeers answers MsgGetPeers.
type MsgPeers struct {
	Addresses []string
}

func (*MsgPeers) Command() MessageCommand { return CmdPeers }

// MsgGetTemplate asks the peer to build a mining template paying out to
// RewardAddress.
type MsgGetTemplate struct {
	RewardAddress primitives.Address
}

func (*MsgGetTemplate) Command() MessageCommand { return CmdGetTemplate }

// MsgBlockTemplate answers MsgGetTemplate with an unsolved block.
type MsgBlockTemplate struct {
	Block *block.Block
}

func (*MsgBlockTemplate) Command() MessageCommand { return CmdBlockTemplate }

// MsgSubmitBlock submits a solved block for validation and relay.
type MsgSubmitBlock struct {
	Block *block.Block
}

func (*MsgSubmitBlock) Command() MessageCommand { return CmdSubmitBlock }

// MsgPing carries a nonce a correct peer must echo back in MsgPong.
type MsgPing struct {
	Nonce uint64
}

func (*MsgPing) Command() MessageCommand { return CmdPing }

// MsgPong answers MsgPing.
type MsgPong struct {
	Nonce uint64
}

func (*MsgPong) Command() MessageCommand { return CmdPong }

// MsgError reports a protocol or application-level failure in response to
// whatever request provoked it.
type MsgError struct {
	Reason string
}

func (*MsgError) Command() MessageCommand { return CmdError }

func encodeBody(msg Message) []byte {
	switch m := msg.(type) {
	case *MsgHello:
		buf := put32(nil, m.ProtocolVersion)
		buf = append(buf, m.NodeID[:]...)
		buf = put64(buf, m.ChainID)
		return putString(buf, m.UserAgent)
	case *MsgHelloAck:
		buf := put32(nil, m.ProtocolVersion)
		buf = append(buf, m.NodeID[:]...)
		buf = put64(buf, m.ChainID)
		return putString(buf, m.UserAgent)
	case *MsgGetHeight:
		return nil
	case *MsgHeight:
		buf := put64(nil, m.Height)
		return append(buf, m.Hash[:]...)
	case *MsgGetBlock:
		return append([]byte(nil), m.Hash[:]...)
	case *MsgBlock:
		return EncodeBlock(m.Block)
	case *MsgNewBlock:
		return EncodeBlock(m.Block)
	case *MsgGetHeaders:
		buf := put32(nil, uint32(len(m.Locator)))
		for _, h := range m.Locator {
			buf = append(buf, h[:]...)
		}
		return append(buf, m.StopHash[:]...)
	case *MsgHeaders:
		buf := put32(nil, uint32(len(m.Headers)))
		for _, h := range m.Headers {
			buf = append(buf, EncodeHeader(h)...)
		}
		return buf
	case *MsgNewTransaction:
		return EncodeTransaction(m.Transaction)
	case *MsgGetTransactions:
		buf := put32(nil, uint32(len(m.IDs)))
		for _, id := range m.IDs {
			buf = append(buf, id[:]...)
		}
		return buf
	case *MsgTransactions:
		buf := put32(nil, uint32(len(m.Transactions)))
		for _, tx := range m.Transactions {
			buf = append(buf, EncodeTransaction(tx)...)
		}
		return buf
	case *MsgGetBalance:
		return append([]byte(nil), m.Address[:]...)
	case *MsgBalance:
		buf := append([]byte(nil), m.Address[:]...)
		return put64(buf, m.Amount)
	case *MsgGetTransactionHistory:
		buf := append([]byte(nil), m.Address[:]...)
		return put32(buf, m.Limit)
	case *MsgTransactionHistory:
		buf := put32(nil, uint32(len(m.Transactions)))
		for _, tx := range m.Transactions {
			buf = append(buf, EncodeTransaction(tx)...)
		}
		return buf
	case *MsgGetPeers:
		return nil
	case *MsgPeers:
		buf := put32(nil, uint32(len(m.Addresses)))
		for _, a := range m.Addresses {
			buf = putString(buf, a)
		}
		return buf
	case *MsgGetTemplate:
		return append([]byte(nil), m.RewardAddress[:]...)
	case *MsgBlockTemplate:
		return EncodeBlock(m.Block)
	case *MsgSubmitBlock:
		return EncodeBlock(m.Block)
	case *MsgPing:
		return put64(nil, m.Nonce)
	case *MsgPong:
		return put64(nil, m.Nonce)
	case *MsgError:
		return putString(nil, m.Reason)
	default:
		return nil
	}
}

func decodeBody(cmd MessageCommand, b []byte) (Message, error) {
	switch cmd {
	case CmdHello, CmdHelloAck:
		version, rest, err := get32(b)
		if err != nil {
			return nil, err
		}
		addr, rest, err := getAddress(rest)
		if err != nil {
			return nil, err
		}
		chainID, rest, err := get64(rest)
		if err != nil {
			return nil, err
		}
		agent, _, err := getString(rest)
		if err != nil {
			return nil, err
		}
		if cmd == CmdHello {
			return &MsgHello{ProtocolVersion: version, NodeID: addr, ChainID: chainID, UserAgent: agent}, nil
		}
		return &MsgHelloAck{ProtocolVersion: version, NodeID: addr, ChainID: chainID, UserAgent: agent}, nil

	case CmdGetHeight:
		return &MsgGetHeight{}, nil

	case CmdHeight:
		height, rest, err := get64(b)
		if err != nil {
			return nil, err
		}
		hash, _, err := getHash(rest)
		if err != nil {
			return nil, err
		}
		return &MsgHeight{Height: height, Hash: hash}, nil

	case CmdGetBlock:
		hash, _, err := getHash(b)
		if err != nil {
			return nil, err
		}
		return &MsgGetBlock{Hash: hash}, nil

	case CmdBlock:
		blk, err := DecodeBlock(b)
		if err != nil {
			return nil, err
		}
		return &MsgBlock{Block: blk}, nil

	case CmdNewBlock:
		blk, err := DecodeBlock(b)
		if err != nil {
			return nil, err
		}
		return &MsgNewBlock{Block: blk}, nil

	case CmdGetHeaders:
		count, rest, err := get32(b)
		if err != nil {
			return nil, err
		}
		locator := make([]primitives.Hash, 0, count)
		for i := uint32(0); i < count; i++ {
			var h primitives.Hash
			h, rest, err = getHash(rest)
			if err != nil {
				return nil, err
			}
			locator = append(locator, h)
		}
		stop, _, err := getHash(rest)
		if err != nil {
			return nil, err
		}
		return &MsgGetHeaders{Locator: locator, StopHash: stop}, nil

	case CmdHeaders:
		count, rest, err := get32(b)
		if err != nil {
			return nil, err
		}
		headers := make([]block.Header, 0, count)
		for i := uint32(0); i < count; i++ {
			var h block.Header
			h, rest, err = DecodeHeader(rest)
			if err != nil {
				return nil, err
			}
			headers = append(headers, h)
		}
		return &MsgHeaders{Headers: headers}, nil

	case CmdNewTransaction:
		tx, _, err := DecodeTransaction(b)
		if err != nil {
			return nil, err
		}
		return &MsgNewTransaction{Transaction: tx}, nil

	case CmdGetTransactions:
		count, rest, err := get32(b)
		if err != nil {
			return nil, err
		}
		ids := make([]txn.ID, 0, count)
		for i := uint32(0); i < count; i++ {
			var h primitives.Hash
			h, rest, err = getHash(rest)
			if err != nil {
				return nil, err
			}
			ids = append(ids, h)
		}
		return &MsgGetTransactions{IDs: ids}, nil

	case CmdTransactions:
		txs, err := decodeTransactionList(b)
		if err != nil {
			return nil, err
		}
		return &MsgTransactions{Transactions: txs}, nil

	case CmdGetBalance:
		addr, _, err := getAddress(b)
		if err != nil {
			return nil, err
		}
		return &MsgGetBalance{Address: addr}, nil

	case CmdBalance:
		addr, rest, err := getAddress(b)
		if err != nil {
			return nil, err
		}
		amount, _, err := get64(rest)
		if err != nil {
			return nil, err
		}
		return &MsgBalance{Address: addr, Amount: amount}, nil

	case CmdGetTransactionHistory:
		addr, rest, err := getAddress(b)
		if err != nil {
			return nil, err
		}
		limit, _, err := get32(rest)
		if err != nil {
			return nil, err
		}
		return &MsgGetTransactionHistory{Address: addr, Limit: limit}, nil

	case CmdTransactionHistory:
		txs, err := decodeTransactionList(b)
		if err != nil {
			return nil, err
		}
		return &MsgTransactionHistory{Transactions: txs}, nil

	case CmdGetPeers:
		return &MsgGetPeers{}, nil

	case CmdPeers:
		count, rest, err := get32(b)
		if err != nil {
			return nil, err
		}
		addrs := make([]string, 0, count)
		for i := uint32(0); i < count; i++ {
			var s string
			s, rest, err = getString(rest)
			if err != nil {
				return nil, err
			}
			addrs = append(addrs, s)
		}
		return &MsgPeers{Addresses: addrs}, nil

	case CmdGetTemplate:
		addr, _, err := getAddress(b)
		if err != nil {
			return nil, err
		}
		return &MsgGetTemplate{RewardAddress: addr}, nil

	case CmdBlockTemplate:
		blk, err := DecodeBlock(b)
		if err != nil {
			return nil, err
		}
		return &MsgBlockTemplate{Block: blk}, nil

	case CmdSubmitBlock:
		blk, err := DecodeBlock(b)
		if err != nil {
			return nil, err
		}
		return &MsgSubmitBlock{Block: blk}, nil

	case CmdPing:
		nonce, _, err := get64(b)
		if err != nil {
			return nil, err
		}
		return &MsgPing{Nonce: nonce}, nil

	case CmdPong:
		nonce, _, err := get64(b)
		if err != nil {
			return nil, err
		}
		return &MsgPong{Nonce: nonce}, nil

	case CmdError:
		reason, _, err := getString(b)
		if err != nil {
			return nil, err
		}
		return &MsgError{Reason: reason}, nil

	default:
		return nil, errUnknownCommand
	}
}

func decodeTransactionList(b []byte) ([]*txn.Transaction, error) {
	count, b, err := get32(b)
	if err != nil {
		return nil, err
	}
	txs := make([]*txn.Transaction, 0, count)
	for i := uint32(0); i < count; i++ {
		var tx *txn.Transaction
		tx, b, err = DecodeTransaction(b)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
