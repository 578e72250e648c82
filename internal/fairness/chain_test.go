package fairness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainCommitmentMatchesSecret(t *testing.T) {
	c := NewChain(10)
	assert.Equal(t, sha256Hex(c.Secret()), c.Commitment())
}

func TestChainLinkage(t *testing.T) {
	// Hashing the seed revealed for round i+1 must yield the seed revealed
	// for round i: this is what lets players audit the whole chain backwards.
	c := NewChain(5)
	prev := c.Secret()
	for i := 0; i < 4; i++ {
		c.Advance()
		next := c.Secret()
		assert.Equal(t, prev, sha256Hex(next), "seed %d must hash to seed %d", i+1, i)
		prev = next
	}
}

func TestChainAdvanceIncrementsNonce(t *testing.T) {
	c := NewChain(3)
	require.EqualValues(t, 0, c.Nonce())
	c.Advance()
	c.Advance()
	assert.EqualValues(t, 2, c.Nonce())
}

func TestChainRegeneratesWhenExhausted(t *testing.T) {
	c := NewChain(3)
	first := append([]string(nil), c.seeds...)

	// Three advances consume a chain of length 3; the exhausted chain is
	// replaced by a fresh one with the index back at zero.
	c.Advance()
	c.Advance()
	require.Equal(t, 2, c.index)
	c.Advance()

	assert.Equal(t, 0, c.index)
	assert.Len(t, c.seeds, 3)
	assert.NotEqual(t, first, c.seeds, "regenerated chain must use a fresh root")
	// Nonce never resets: it keeps counting across chains.
	assert.EqualValues(t, 3, c.Nonce())
}

func TestChainRegenerationKeepsWorking(t *testing.T) {
	c := NewChain(3)
	for i := 0; i < 10; i++ {
		c.Advance()
		assert.Equal(t, sha256Hex(c.Secret()), c.Commitment())
	}
	assert.EqualValues(t, 10, c.Nonce())
}

func TestVerificationDataConsistency(t *testing.T) {
	c := NewChain(4)
	vd := c.VerificationData()
	assert.Equal(t, c.Secret(), vd.ServerSeed)
	assert.Equal(t, sha256Hex(vd.ServerSeed), vd.Commitment)
	assert.Equal(t, c.ClientSeed(), vd.ClientSeed)

	pub := c.PublicData()
	assert.Equal(t, vd.Commitment, pub.Commitment)
	assert.Equal(t, vd.Nonce, pub.Nonce)
}
