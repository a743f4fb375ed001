package keygen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerate(t *testing.T) {
	t.Parallel()
	kp, err := Generate("gpurace-test")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(kp.PublicKey, "ssh-ed25519 "))
	assert.False(t, strings.HasSuffix(kp.PublicKey, "\n"))
	assert.Contains(t, string(kp.PrivateKey), "OPENSSH PRIVATE KEY")

	parsed, err := ssh.ParsePrivateKey(kp.PrivateKey)
	require.NoError(t, err)
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(kp.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, pub.Marshal(), parsed.PublicKey().Marshal())
}

func TestGenerate_Unique(t *testing.T) {
	t.Parallel()
	a, err := Generate("")
	require.NoError(t, err)
	b, err := Generate("")
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey, b.PublicKey)
}

func TestSigner(t *testing.T) {
	t.Parallel()
	kp, err := Generate("x")
	require.NoError(t, err)

	s, err := kp.Signer()
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519", s.PublicKey().Type())

	// a key pair loaded from disk has no cached signer
	loaded := &KeyPair{PrivateKey: kp.PrivateKey, PublicKey: kp.PublicKey}
	s2, err := loaded.Signer()
	require.NoError(t, err)
	assert.Equal(t, s.PublicKey().Marshal(), s2.PublicKey().Marshal())
}
