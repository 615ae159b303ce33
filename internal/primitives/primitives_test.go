package primitives_test

import (
	"crypto/rand"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/pali-coin/node/internal/primitives"
)

func TestMeetsTarget(t *testing.T) {
	tests := []struct {
		name string
		hash primitives.Hash
		bits uint32
		want bool
	}{
		{"zero hash meets any target", primitives.Hash{}, 256, true},
		{"single leading zero byte, 8 bits", primitives.Hash{0x00, 0x80}, 8, true},
		{"single leading zero byte, 9 bits fails", primitives.Hash{0x00, 0x80}, 9, false},
		{"one bit short of target", primitives.Hash{0x01}, 8, false},
		{"no leading zero", primitives.Hash{0xff}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, primitives.MeetsTarget(tt.hash, tt.bits))
		})
	}
}

func TestDeriveAddressRejectsWrongLength(t *testing.T) {
	_, err := primitives.DeriveAddress([]byte{1, 2, 3})
	require.Error(t, err, "expected error for short public key")
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, pub, err := primitives.NewKeyPair(rand.Reader)
	require.NoError(t, err)
	hash := primitives.DoubleSHA256([]byte("pali-coin test message"))

	sig, err := primitives.Sign(priv, hash)
	require.NoError(t, err)
	require.True(t, primitives.Verify(pub, hash, sig), "Verify() should accept a freshly produced signature")

	recovered, err := primitives.RecoverPublicKey(hash, sig)
	require.NoError(t, err)
	require.True(t, recovered.Equal(pub), "recovered public key does not match signer:\n%s", spew.Sdump(recovered))
}

func TestVerifyRejectsBitFlips(t *testing.T) {
	priv, pub, err := primitives.NewKeyPair(rand.Reader)
	require.NoError(t, err)
	hash := primitives.DoubleSHA256([]byte("flip me"))
	sig, err := primitives.Sign(priv, hash)
	require.NoError(t, err)

	for i := 0; i < primitives.SignatureSize; i++ {
		flipped := sig
		flipped[i] ^= 0x01
		require.False(t, primitives.Verify(pub, hash, flipped), "Verify() accepted a single-bit perturbation at byte %d", i)
	}
}

func TestAddressRoundTripsThroughBase58Check(t *testing.T) {
	_, pub, err := primitives.NewKeyPair(rand.Reader)
	require.NoError(t, err)
	addr, err := pub.Address()
	require.NoError(t, err)

	encoded := primitives.EncodeAddress(addr, 0x00)
	decoded, err := primitives.DecodeAddress(encoded, 0x00)
	require.NoError(t, err)
	require.Equal(t, addr, decoded, "round-tripped address mismatch:\nwant %s\ngot  %s", spew.Sdump(addr), spew.Sdump(decoded))

	_, err = primitives.DecodeAddress(encoded, 0x6f)
	require.Error(t, err, "expected version mismatch to be rejected")
}
