// Package peerlink implements the authenticated, encrypted peer-to-peer
// link: dialing and accepting connections, the secure-channel handshake
// followed by an application-level Hello exchange, a per-peer state
// machine with ban-score accumulation and stale disconnection, and
// best-effort relay of new blocks and transactions to the rest of the
// peer set.
package peerlink

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/consensus"
	"github.com/pali-coin/node/internal/logger"
	"github.com/pali-coin/node/internal/mempool"
	"github.com/pali-coin/node/internal/params"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/secchan"
	"github.com/pali-coin/node/internal/txn"
	"github.com/pali-coin/node/wire"
)

// staleSweepInterval is how often the server checks every peer's idle time
// against staleAfter.
const staleSweepInterval = time.Minute

// maxHeadersPerResponse bounds one Headers reply so a single request can't
// force an unbounded read and send.
const maxHeadersPerResponse = 2000

// Server owns the listener, the live peer set, and the handlers that
// connect wire messages to the consensus engine and mempool.
type Server struct {
	identity *primitives.PrivateKey
	engine   *consensus.Engine
	pool     *mempool.Mempool
	params   params.Params
	log      *logger.Logger

	mu       sync.Mutex
	peers    map[string]*Peer
	listener net.Listener
	closing  bool
}

// NewServer builds a server bound to engine and pool; identity is the node's
// long-lived key used in every secure-channel handshake.
func NewServer(identity *primitives.PrivateKey, engine *consensus.Engine, pool *mempool.Mempool, p params.Params) *Server {
	return &Server{
		identity: identity,
		engine:   engine,
		pool:     pool,
		params:   p,
		log:      logger.Get(logger.SubsystemPeerLink),
		peers:    make(map[string]*Peer),
	}
}

// Listen accepts inbound connections on addr until Close is called.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &NetError{Rule: RuleDial, Err: err}
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go s.staleSweepLoop()
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			s.log.Warnf("accept: %v", err)
			continue
		}
		go s.handleInbound(conn)
	}
}

func (s *Server) handleInbound(conn net.Conn) {
	channel, err := secchan.Handshake(conn, s.identity, false)
	if err != nil {
		s.log.Warnf("inbound handshake from %s failed: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	p := newPeer(conn, channel, false)
	s.completeHandshake(p)
}

// Dial connects to addr, performs the secure-channel and Hello handshake,
// and registers the resulting peer.
func (s *Server) Dial(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return &NetError{Rule: RuleDial, Err: err}
	}
	channel, err := secchan.Handshake(conn, s.identity, true)
	if err != nil {
		conn.Close()
		return &NetError{Rule: RuleHandshake, Err: err}
	}
	p := newPeer(conn, channel, true)
	return s.completeHandshake(p)
}

func (s *Server) completeHandshake(p *Peer) error {
	nodeID, err := s.identity.PublicKey().Address()
	if err != nil {
		p.close()
		return &NetError{Rule: RuleHandshake, Err: err}
	}

	if p.outbound {
		p.Enqueue(&wire.MsgHello{ProtocolVersion: 1, NodeID: nodeID, ChainID: uint64(s.params.Network), UserAgent: "pali-node"})
	}
	go p.writeLoop()

	msg, err := p.readMessage()
	if err != nil {
		p.close()
		return err
	}
	var remoteID primitives.Address
	var remoteChain uint64
	switch m := msg.(type) {
	case *wire.MsgHello:
		remoteID, remoteChain = m.NodeID, m.ChainID
	case *wire.MsgHelloAck:
		remoteID, remoteChain = m.NodeID, m.ChainID
	default:
		p.close()
		return &NetError{Rule: RuleProtocol}
	}
	if remoteChain != uint64(s.params.Network) {
		p.close()
		return &NetError{Rule: RuleProtocol}
	}
	if !p.outbound {
		p.Enqueue(&wire.MsgHelloAck{ProtocolVersion: 1, NodeID: nodeID, ChainID: uint64(s.params.Network), UserAgent: "pali-node"})
	}

	p.mu.Lock()
	p.nodeID = remoteID
	p.state = Active
	p.mu.Unlock()

	s.mu.Lock()
	s.peers[p.addr] = p
	s.mu.Unlock()

	s.log.Infof("peer %s active (outbound=%v)", p.addr, p.outbound)
	go s.readLoop(p)
	return nil
}

func (s *Server) readLoop(p *Peer) {
	for {
		msg, err := p.readMessage()
		if err != nil {
			s.log.Warnf("peer %s read failed: %v", p.addr, err)
			s.disconnect(p)
			return
		}
		s.handleMessage(p, msg)
		if p.State() == Banned || p.State() == Closed {
			s.disconnect(p)
			return
		}
	}
}

func (s *Server) disconnect(p *Peer) {
	p.close()
	s.mu.Lock()
	delete(s.peers, p.addr)
	s.mu.Unlock()
}

// Broadcast enqueues msg on every active peer other than origin. Slow
// peers never block the sender; Peer.Enqueue drops on a full queue.
func (s *Server) Broadcast(msg wire.Message, origin *Peer) {
	s.mu.Lock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		if p == origin {
			continue
		}
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		if p.State() == Active {
			p.Enqueue(msg)
		}
	}
}

// staleSweepLoop disconnects any peer idle for longer than staleAfter.
func (s *Server) staleSweepLoop() {
	ticker := time.NewTicker(staleSweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		closing := s.closing
		peers := make([]*Peer, 0, len(s.peers))
		for _, p := range s.peers {
			peers = append(peers, p)
		}
		s.mu.Unlock()
		if closing {
			return
		}
		for _, p := range peers {
			if p.idleFor() > staleAfter {
				p.setState(Stale)
				s.log.Infof("peer %s stale, disconnecting", p.addr)
				s.disconnect(p)
			}
		}
	}
}

// defaultRequestTimeout bounds how long Request waits for a reply before
// giving up.
const defaultRequestTimeout = 10 * time.Second

// Request sends req to the peer at addr and blocks for its response. Only
// one Request may be outstanding per peer at a time, since the wire format
// carries no request ID to correlate concurrent calls.
func (s *Server) Request(addr string, req wire.Message) (wire.Message, error) {
	p, ok := s.Peer(addr)
	if !ok {
		return nil, &NetError{Rule: RuleDial, Err: errPeerClosed}
	}
	p.Enqueue(req)
	return p.Await(defaultRequestTimeout)
}

// PeerCount reports how many peers are currently tracked, in any state.
func (s *Server) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Peer returns the tracked peer for addr, if any.
func (s *Server) Peer(addr string) (*Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[addr]
	return p, ok
}

// Close stops accepting connections and disconnects every peer.
func (s *Server) Close() {
	s.mu.Lock()
	s.closing = true
	ln := s.listener
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, p := range peers {
		s.disconnect(p)
	}
}

// requiresState is the set of commands handleMessage answers from the
// local engine/pool. A node dialed out with a nil engine and pool (a pure
// RPC client, e.g. cmd/miner or cmd/wallet) never serves these: they only
// make sense for a peer acting as a full node.
func requiresState(cmd wire.MessageCommand) bool {
	switch cmd {
	case wire.CmdGetHeight, wire.CmdGetBlock, wire.CmdNewBlock, wire.CmdSubmitBlock,
		wire.CmdGetHeaders, wire.CmdNewTransaction, wire.CmdGetTransactions,
		wire.CmdGetBalance, wire.CmdGetTransactionHistory, wire.CmdGetTemplate:
		return true
	default:
		return false
	}
}

func (s *Server) handleMessage(p *Peer, msg wire.Message) {
	if s.engine == nil && requiresState(msg.Command()) {
		p.Enqueue(&wire.MsgError{Reason: "this peer has no chain state to serve requests from"})
		return
	}

	switch m := msg.(type) {
	case *wire.MsgGetHeight:
		hash, height := s.engine.Tip()
		p.Enqueue(&wire.MsgHeight{Height: height, Hash: hash})

	case *wire.MsgGetBlock:
		blk, err := s.engine.Block(m.Hash)
		if err != nil {
			p.Enqueue(&wire.MsgError{Reason: "unknown block"})
			return
		}
		p.Enqueue(&wire.MsgBlock{Block: blk})

	case *wire.MsgNewBlock:
		s.acceptBlock(p, m.Block, true)

	case *wire.MsgSubmitBlock:
		s.acceptBlock(p, m.Block, false)

	case *wire.MsgGetHeaders:
		s.handleGetHeaders(p, m)

	case *wire.MsgNewTransaction:
		s.acceptTransaction(p, m.Transaction)

	case *wire.MsgGetTransactions:
		var txs []*txn.Transaction
		for _, id := range m.IDs {
			if tx, ok := s.pool.Get(id); ok {
				txs = append(txs, tx)
			}
		}
		p.Enqueue(&wire.MsgTransactions{Transactions: txs})

	case *wire.MsgGetBalance:
		p.Enqueue(&wire.MsgBalance{Address: m.Address, Amount: s.engine.Balance(m.Address)})

	case *wire.MsgGetTransactionHistory:
		limit := int(m.Limit)
		if limit <= 0 {
			limit = 50
		}
		history, err := s.engine.History(m.Address, limit)
		if err != nil {
			p.Enqueue(&wire.MsgError{Reason: "history lookup failed"})
			return
		}
		p.Enqueue(&wire.MsgTransactionHistory{Transactions: history})

	case *wire.MsgGetPeers:
		s.mu.Lock()
		addrs := make([]string, 0, len(s.peers))
		for addr := range s.peers {
			addrs = append(addrs, addr)
		}
		s.mu.Unlock()
		p.Enqueue(&wire.MsgPeers{Addresses: addrs})

	case *wire.MsgGetTemplate:
		tmpl, err := s.buildTemplate(m.RewardAddress)
		if err != nil {
			p.Enqueue(&wire.MsgError{Reason: "template construction failed"})
			return
		}
		p.Enqueue(&wire.MsgBlockTemplate{Block: tmpl})

	case *wire.MsgPing:
		p.Enqueue(&wire.MsgPong{Nonce: m.Nonce})

	case *wire.MsgPong:
		// liveness only, readMessage already touched lastActivity.

	case *wire.MsgError:
		s.log.Warnf("peer %s reported error: %s", p.addr, m.Reason)

	case *wire.MsgHeight, *wire.MsgBlock, *wire.MsgHeaders, *wire.MsgTransactions,
		*wire.MsgBalance, *wire.MsgTransactionHistory, *wire.MsgPeers, *wire.MsgBlockTemplate:
		// Answers to a request this node issued; hand off to whoever called
		// Peer.Await. An uncorrelated answer is dropped, not a violation.
		p.deliverResponse(m)

	default:
		if p.addBanScore(banScoreProtocolViolation) {
			p.setState(Banned)
		}
	}
}

func (s *Server) acceptBlock(p *Peer, blk *block.Block, relay bool) {
	if err := s.engine.AddBlock(blk); err != nil {
		var rejectErr *consensus.RejectError
		if errors.As(err, &rejectErr) && rejectErr.Rule == consensus.RuleBadBlock {
			if p.addBanScore(banScoreInvalidBlock) {
				p.setState(Banned)
			}
		}
		s.log.Debugf("rejected block from %s: %v", p.addr, err)
		return
	}
	if relay {
		s.Broadcast(&wire.MsgNewBlock{Block: blk}, p)
	} else {
		s.Broadcast(&wire.MsgNewBlock{Block: blk}, nil)
	}
}

func (s *Server) acceptTransaction(p *Peer, tx *txn.Transaction) {
	if err := s.pool.Add(tx); err != nil {
		var rejectErr *mempool.RejectError
		if errors.As(err, &rejectErr) && rejectErr.Why == mempool.ReasonDoubleSpend {
			if p.addBanScore(banScoreInvalidTx) {
				p.setState(Banned)
			}
		}
		s.log.Debugf("rejected tx from %s: %v", p.addr, err)
		return
	}
	s.Broadcast(&wire.MsgNewTransaction{Transaction: tx}, p)
}

func (s *Server) handleGetHeaders(p *Peer, m *wire.MsgGetHeaders) {
	start := uint64(0)
	for _, hash := range m.Locator {
		if blk, err := s.engine.Block(hash); err == nil {
			if blk.Header.Height > start {
				start = blk.Header.Height
			}
		}
	}

	_, tipHeight := s.engine.Tip()
	var headers []block.Header
	for h := start + 1; h <= tipHeight && len(headers) < maxHeadersPerResponse; h++ {
		blk, err := s.engine.BlockAtHeight(h)
		if err != nil {
			break
		}
		headers = append(headers, blk.Header)
		if blk.Hash() == m.StopHash {
			break
		}
	}
	p.Enqueue(&wire.MsgHeaders{Headers: headers})
}

func (s *Server) buildTemplate(rewardAddr primitives.Address) (*block.Block, error) {
	tipHash, tipHeight := s.engine.Tip()
	height := tipHeight + 1

	bits, err := s.engine.NextDifficulty()
	if err != nil {
		return nil, err
	}

	maxTxCount := s.params.MaxBlockTxCount - 1
	txs := s.pool.SelectForBlock(maxTxCount, s.params.MaxBlockSize)
	var feeSum uint64
	for _, tx := range txs {
		feeSum += tx.Fee
	}
	reward := consensus.BlockReward(s.params, height)
	coinbase := txn.NewCoinbase(rewardAddr, reward+feeSum, height, uint64(s.params.Network))

	all := make([]*txn.Transaction, 0, len(txs)+1)
	all = append(all, coinbase)
	all = append(all, txs...)

	blk := &block.Block{
		Header: block.Header{
			Version:          1,
			PrevHash:         tipHash,
			Timestamp:        time.Now().Unix(),
			Height:           height,
			DifficultyTarget: bits,
			TxCount:          uint32(len(all)),
		},
		Transactions: all,
	}
	blk.Header.MerkleRoot = blk.RecomputeMerkleRoot()
	blk.Header.BlockSize = blk.SerializedSize()
	return blk, nil
}
