// Package secchan implements an authenticated, confidential, ordered
// channel between two peers over any io.ReadWriter: an ECDH handshake
// derives a key schedule via HKDF-SHA-256, and every subsequent message is
// sealed with ChaCha20-Poly1305 under a counter-derived nonce and
// separately authenticated with HMAC-SHA-256, with periodic rekeying for
// forward secrecy.
package secchan

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/pali-coin/node/internal/primitives"
)

const (
	protocolVersion = 1
	rekeyInterval   = 100 // messages, either direction
	nonceSize       = chacha20poly1305.NonceSize
	macSize         = sha256.Size
)

// Frame is the wire shape of one sealed message: a 12-byte nonce, the
// variable-length AEAD ciphertext, a 32-byte HMAC, and the 8-byte counter
// the nonce and MAC were computed over. RekeyPub is set only on the
// message that triggers a rekey, carrying the sender's fresh ephemeral
// public key so the receiver can derive the same new key schedule.
type Frame struct {
	Nonce      [nonceSize]byte
	Ciphertext []byte
	MAC        [macSize]byte
	Counter    uint64
	RekeyPub   *[primitives.PublicKeySize]byte
}

// Channel is one established secure channel with a peer.
type Channel struct {
	mu sync.Mutex

	state State

	identity *primitives.PrivateKey
	peerPub  *primitives.PublicKey

	sharedSecret []byte
	encKey       [32]byte
	macKey       [32]byte

	counterOut    uint64
	counterIn     uint64
	highWaterMark uint64
}

// State reports the channel's current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Handshake performs the identity-key exchange over conn and derives the
// initial key schedule. initiator sends first; the non-initiator reads
// first. Both sides end in Established on success, or the channel is left
// Closed.
func Handshake(conn io.ReadWriter, identity *primitives.PrivateKey, initiator bool) (*Channel, error) {
	c := &Channel{state: Handshaking, identity: identity}

	ourPub := identity.PublicKey()
	var peerPub *primitives.PublicKey
	var err error

	if initiator {
		if err = writeHandshakeMsg(conn, ourPub); err != nil {
			c.state = Closed
			return nil, err
		}
		peerPub, err = readHandshakeMsg(conn)
	} else {
		peerPub, err = readHandshakeMsg(conn)
		if err == nil {
			err = writeHandshakeMsg(conn, ourPub)
		}
	}
	if err != nil {
		c.state = Closed
		return nil, err
	}

	c.peerPub = peerPub
	c.sharedSecret = primitives.ECDH(identity, peerPub)
	if err := c.deriveKeys(c.sharedSecret); err != nil {
		c.state = Closed
		return nil, err
	}
	c.state = Established
	return c, nil
}

func writeHandshakeMsg(w io.Writer, pub *primitives.PublicKey) error {
	var buf [4 + primitives.PublicKeySize]byte
	binary.BigEndian.PutUint32(buf[:4], protocolVersion)
	copy(buf[4:], pub.Bytes())
	_, err := w.Write(buf[:])
	if err != nil {
		return &CryptoError{Rule: RuleShortMessage, Err: err}
	}
	return nil
}

func readHandshakeMsg(r io.Reader) (*primitives.PublicKey, error) {
	var buf [4 + primitives.PublicKeySize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, &CryptoError{Rule: RuleShortMessage, Err: err}
	}
	pub, err := primitives.PublicKeyFromBytes(buf[4:])
	if err != nil {
		return nil, &CryptoError{Rule: RuleKeyParse, Err: err}
	}
	return pub, nil
}

// deriveKeys runs HKDF-SHA-256 over secret, labeling the two 32-byte
// outputs "encryption" and "mac".
func (c *Channel) deriveKeys(secret []byte) error {
	enc, err := hkdfExpand(secret, []byte("encryption"))
	if err != nil {
		return err
	}
	mac, err := hkdfExpand(secret, []byte("mac"))
	if err != nil {
		return err
	}
	c.encKey = enc
	c.macKey = mac
	return nil
}

func hkdfExpand(secret, label []byte) ([32]byte, error) {
	var out [32]byte
	reader := hkdf.New(sha256.New, secret, nil, label)
	if _, err := io.ReadFull(reader, out[:]); err != nil {
		return out, &CryptoError{Rule: RuleHKDF, Err: err}
	}
	return out, nil
}

// Seal encrypts and authenticates plaintext under the channel's current
// outbound counter, advancing it. The rekeyInterval-th message (counter ==
// rekeyInterval-1, i.e. message number rekeyInterval itself) rekeys first
// and carries the fresh ephemeral public key so the peer can follow, then
// is itself sealed under the new keys; message rekeyInterval+1 is the
// first one processed entirely under the new keys.
func (c *Channel) Seal(plaintext []byte) (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Established {
		return Frame{}, &CryptoError{Rule: RuleBadState}
	}

	counter := c.counterOut
	c.counterOut++

	var rekeyPub *[primitives.PublicKeySize]byte
	if (counter+1)%rekeyInterval == 0 {
		pub, err := c.rekeyAsSenderLocked()
		if err != nil {
			return Frame{}, err
		}
		var b [primitives.PublicKeySize]byte
		copy(b[:], pub.Bytes())
		rekeyPub = &b
	}

	var nonce [nonceSize]byte
	binary.LittleEndian.PutUint64(nonce[:8], counter)

	aead, err := chacha20poly1305.New(c.encKey[:])
	if err != nil {
		return Frame{}, &CryptoError{Rule: RuleAEADDecrypt, Err: err}
	}
	ciphertext := aead.Seal(nil, nonce[:], plaintext, nil)

	frame := Frame{Nonce: nonce, Ciphertext: ciphertext, Counter: counter, RekeyPub: rekeyPub}
	frame.MAC = c.frameMAC(nonce, ciphertext, counter)
	return frame, nil
}

// Open verifies and decrypts an inbound frame, rejecting replays (a
// counter below the high-water mark, which is one past the last accepted
// counter) and MAC failures before ever
// attempting decryption. A frame carrying RekeyPub advances the key
// schedule to match the sender before the MAC is checked.
func (c *Channel) Open(f Frame) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Established {
		return nil, &CryptoError{Rule: RuleBadState}
	}
	if f.Counter < c.highWaterMark {
		return nil, &CryptoError{Rule: RuleReplay}
	}

	if f.RekeyPub != nil {
		peerEphemeral, err := primitives.PublicKeyFromBytes(f.RekeyPub[:])
		if err != nil {
			return nil, &CryptoError{Rule: RuleKeyParse, Err: err}
		}
		if err := c.rekeyAsReceiverLocked(peerEphemeral); err != nil {
			return nil, err
		}
	}

	expected := c.frameMAC(f.Nonce, f.Ciphertext, f.Counter)
	if !hmac.Equal(expected[:], f.MAC[:]) {
		return nil, &CryptoError{Rule: RuleMACMismatch}
	}

	aead, err := chacha20poly1305.New(c.encKey[:])
	if err != nil {
		return nil, &CryptoError{Rule: RuleAEADDecrypt, Err: err}
	}
	plaintext, err := aead.Open(nil, f.Nonce[:], f.Ciphertext, nil)
	if err != nil {
		return nil, &CryptoError{Rule: RuleAEADDecrypt, Err: err}
	}

	c.highWaterMark = f.Counter + 1
	c.counterIn++
	return plaintext, nil
}

func (c *Channel) frameMAC(nonce [nonceSize]byte, ciphertext []byte, counter uint64) [macSize]byte {
	var counterBytes [8]byte
	binary.LittleEndian.PutUint64(counterBytes[:], counter)

	mac := hmac.New(sha256.New, c.macKey[:])
	mac.Write(nonce[:])
	mac.Write(ciphertext)
	mac.Write(counterBytes[:])

	var out [macSize]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// rekeyAsSenderLocked generates a fresh ephemeral identity, ECDHs it
// against the peer's long-lived key, and mixes the result into the shared
// secret, returning the ephemeral public key for the peer to derive the
// matching secret with rekeyAsReceiverLocked. Callers must hold c.mu.
func (c *Channel) rekeyAsSenderLocked() (*primitives.PublicKey, error) {
	ephemeral, ephemeralPub, err := primitives.NewKeyPair(rand.Reader)
	if err != nil {
		return nil, &CryptoError{Rule: RuleKeyParse, Err: err}
	}
	mixed := primitives.ECDH(ephemeral, c.peerPub)
	if err := c.mixAndDeriveLocked(mixed); err != nil {
		return nil, err
	}
	return ephemeralPub, nil
}

// rekeyAsReceiverLocked ECDHs the channel's own long-lived identity against
// the peer's ephemeral public key. By Diffie-Hellman symmetry this equals
// the mixed value rekeyAsSenderLocked computed on the other side. Callers
// must hold c.mu.
func (c *Channel) rekeyAsReceiverLocked(peerEphemeral *primitives.PublicKey) error {
	mixed := primitives.ECDH(c.identity, peerEphemeral)
	return c.mixAndDeriveLocked(mixed)
}

// mixAndDeriveLocked folds mixed into the current shared secret via
// SHA-256 and re-derives the key schedule from the result.
func (c *Channel) mixAndDeriveLocked(mixed []byte) error {
	c.state = Rekeying

	h := sha256.New()
	h.Write(c.sharedSecret)
	h.Write(mixed)
	c.sharedSecret = h.Sum(nil)

	if err := c.deriveKeys(c.sharedSecret); err != nil {
		return err
	}
	c.state = Established
	return nil
}
