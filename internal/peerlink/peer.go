package peerlink

import (
	"net"
	"sync"
	"time"

	"github.com/pali-coin/node/internal/logger"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/secchan"
	"github.com/pali-coin/node/wire"
)

// banThreshold is the cumulative ban score at which a peer is marked Banned
// and disconnected. The address is not recorded; the same address can
// connect again.
const banThreshold = 100

// Ban score increments for each class of peer misbehavior.
const (
	banScoreInvalidBlock      = 20
	banScoreInvalidTx         = 5
	banScoreProtocolViolation = 1
)

// staleAfter is how long a peer may go without activity before it is
// considered stale and disconnected.
const staleAfter = 15 * time.Minute

// sendQueueSize bounds each peer's outbound queue; a full queue means the
// peer is too slow and its send is dropped rather than blocking the caller.
const sendQueueSize = 256

// Peer is one connection to a remote node, secured by a secchan.Channel and
// speaking the wire message set over it.
type Peer struct {
	conn     net.Conn
	channel  *secchan.Channel
	outbound bool
	addr     string

	mu           sync.Mutex
	state        State
	banScore     int
	lastActivity time.Time
	nodeID       primitives.Address

	send     chan wire.Message
	done     chan struct{}
	closeOne sync.Once

	responses chan wire.Message

	log *logger.Logger
}

func newPeer(conn net.Conn, channel *secchan.Channel, outbound bool) *Peer {
	return &Peer{
		conn:         conn,
		channel:      channel,
		outbound:     outbound,
		addr:         conn.RemoteAddr().String(),
		state:        Handshake,
		lastActivity: time.Now(),
		send:         make(chan wire.Message, sendQueueSize),
		done:         make(chan struct{}),
		responses:    make(chan wire.Message, 1),
		log:          logger.Get(logger.SubsystemPeerLink),
	}
}

// deliverResponse hands a response-type message to whoever is waiting in
// Await, if anyone. There is no request-ID in the wire format, so only one
// request may be outstanding per peer at a time; an uncorrelated response is
// dropped rather than treated as a protocol violation.
func (p *Peer) deliverResponse(msg wire.Message) (delivered bool) {
	select {
	case p.responses <- msg:
		return true
	default:
		return false
	}
}

// Await blocks for the next response-type message delivered to this peer, or
// until timeout elapses.
func (p *Peer) Await(timeout time.Duration) (wire.Message, error) {
	select {
	case msg := <-p.responses:
		return msg, nil
	case <-time.After(timeout):
		return nil, &NetError{Rule: RuleProtocol, Err: errResponseTimeout}
	case <-p.done:
		return nil, &NetError{Rule: RuleProtocol, Err: errPeerClosed}
	}
}

// State reports the peer's current lifecycle state.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Peer) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Peer) touch() {
	p.mu.Lock()
	p.lastActivity = time.Now()
	p.mu.Unlock()
}

func (p *Peer) idleFor() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.lastActivity)
}

// addBanScore accumulates score and reports whether the peer has now
// crossed banThreshold.
func (p *Peer) addBanScore(delta int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.banScore += delta
	return p.banScore >= banThreshold
}

// Enqueue queues msg for delivery without blocking; a full send queue marks
// the peer stale and drops the message rather than stalling the caller.
func (p *Peer) Enqueue(msg wire.Message) {
	select {
	case p.send <- msg:
	default:
		p.log.Warnf("peer %s send queue full, dropping %s", p.addr, msg.Command())
		p.setState(Stale)
	}
}

// writeLoop seals and frames every queued message until the peer closes.
func (p *Peer) writeLoop() {
	for {
		select {
		case msg := <-p.send:
			if err := p.writeMessage(msg); err != nil {
				p.log.Warnf("peer %s write failed: %v", p.addr, err)
				p.close()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *Peer) writeMessage(msg wire.Message) error {
	plaintext := wire.Encode(msg)
	frame, err := p.channel.Seal(plaintext)
	if err != nil {
		return &NetError{Rule: RuleHandshake, Err: err}
	}
	raw, err := frame.MarshalBinary()
	if err != nil {
		return &NetError{Rule: RuleFrame, Err: err}
	}
	return wire.WriteFrame(p.conn, raw)
}

// readMessage blocks for the next inbound frame, decrypts, and decodes it.
func (p *Peer) readMessage() (wire.Message, error) {
	raw, err := wire.ReadFrame(p.conn)
	if err != nil {
		return nil, &NetError{Rule: RuleFrame, Err: err}
	}
	var frame secchan.Frame
	if err := frame.UnmarshalBinary(raw); err != nil {
		return nil, &NetError{Rule: RuleFrame, Err: err}
	}
	plaintext, err := p.channel.Open(frame)
	if err != nil {
		return nil, &NetError{Rule: RuleHandshake, Err: err}
	}
	msg, err := wire.Decode(plaintext)
	if err != nil {
		return nil, &NetError{Rule: RuleProtocol, Err: err}
	}
	p.touch()
	return msg, nil
}

func (p *Peer) close() {
	p.setState(Closed)
	p.closeOne.Do(func() { close(p.done) })
	p.conn.Close()
}
