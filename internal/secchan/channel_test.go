package secchan_test

import (
	"crypto/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/secchan"
)

func newIdentity(t *testing.T) *primitives.PrivateKey {
	t.Helper()
	priv, _, err := primitives.NewKeyPair(rand.Reader)
	require.NoError(t, err)
	return priv
}

func handshakePair(t *testing.T) (*secchan.Channel, *secchan.Channel) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })

	clientIdentity := newIdentity(t)
	serverIdentity := newIdentity(t)

	type result struct {
		ch  *secchan.Channel
		err error
	}
	clientRes := make(chan result, 1)
	serverRes := make(chan result, 1)

	go func() {
		ch, err := secchan.Handshake(clientConn, clientIdentity, true)
		clientRes <- result{ch, err}
	}()
	go func() {
		ch, err := secchan.Handshake(serverConn, serverIdentity, false)
		serverRes <- result{ch, err}
	}()

	cr := <-clientRes
	sr := <-serverRes
	require.NoError(t, cr.err, "client Handshake")
	require.NoError(t, sr.err, "server Handshake")
	return cr.ch, sr.ch
}

func TestHandshakeReachesEstablished(t *testing.T) {
	client, server := handshakePair(t)
	require.Equal(t, secchan.Established, client.State())
	require.Equal(t, secchan.Established, server.State())
}

func TestSealOpenRoundTrip(t *testing.T) {
	client, server := handshakePair(t)

	msg := []byte("hello over the wire")
	frame, err := client.Seal(msg)
	require.NoError(t, err)
	got, err := server.Open(frame)
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestOpenRejectsReplay(t *testing.T) {
	client, server := handshakePair(t)

	frame, err := client.Seal([]byte("first"))
	require.NoError(t, err)
	_, err = server.Open(frame)
	require.NoError(t, err, "first delivery")
	_, err = server.Open(frame)
	require.Error(t, err, "replayed frame should be rejected")
}

func TestOpenRejectsTamperedMAC(t *testing.T) {
	client, server := handshakePair(t)

	frame, err := client.Seal([]byte("tamper me"))
	require.NoError(t, err)
	frame.MAC[0] ^= 0xFF
	_, err = server.Open(frame)
	require.Error(t, err, "tampered MAC should be rejected")
}

func TestRekeyEveryHundredMessages(t *testing.T) {
	client, server := handshakePair(t)

	// Counters start at 0, so message number rekeyInterval (the 100th,
	// counter == 99) is the one that carries the rekey.
	for i := 1; i <= 100; i++ {
		frame, err := client.Seal([]byte("msg"))
		require.NoError(t, err, "Seal message %d", i)
		_, err = server.Open(frame)
		require.NoError(t, err, "Open message %d", i)
	}

	require.Equal(t, secchan.Established, client.State(), "client state after rekey")
	require.Equal(t, secchan.Established, server.State(), "server state after rekey")

	// Message 101 is the first processed entirely under the new keys and
	// must still round-trip on its own.
	frame, err := client.Seal([]byte("post-rekey"))
	require.NoError(t, err, "Seal after rekey")
	got, err := server.Open(frame)
	require.NoError(t, err, "Open after rekey")
	require.Equal(t, "post-rekey", string(got))
}
