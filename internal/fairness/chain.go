package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Chain holds a precomputed sequence of server seeds linked by one-way
// hashing. The chain is built forward from a random root and then reversed,
// so seeds are revealed from the deepest hash outward: hashing any revealed
// seed yields the seed revealed one round earlier. The sha256 of the current
// seed (its commitment) is publishable before betting opens; the seed itself
// is revealed only after the round ends.
type Chain struct {
	mu         sync.Mutex
	length     int
	seeds      []string
	index      int
	clientSeed string
	nonce      uint64
}

// VerificationData bundles everything needed to open and later verify a round.
type VerificationData struct {
	ServerSeed string `json:"serverSeed"`
	Commitment string `json:"serverSeedHash"`
	ClientSeed string `json:"clientSeed"`
	Nonce      uint64 `json:"nonce"`
}

// PublicData is the pre-reveal subset exposed on the provably-fair endpoint.
type PublicData struct {
	Commitment string `json:"serverSeedHash"`
	ClientSeed string `json:"clientSeed"`
	Nonce      uint64 `json:"nonce"`
}

// NewChain generates a chain of the given length with a fresh random root
// and a public client contribution seed.
func NewChain(length int) *Chain {
	if length < 1 {
		length = 1
	}
	c := &Chain{
		length:     length,
		clientSeed: randomHex(32),
	}
	c.generate()
	return c
}

func randomHex(n int) string {
	b := make([]byte, n)
	// crypto/rand.Read never returns an error on supported platforms
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// generate rebuilds the seed chain from a new random root. Caller holds the
// lock (or is the constructor).
func (c *Chain) generate() {
	seed := randomHex(32)
	seeds := make([]string, c.length)
	seeds[0] = seed
	for i := 1; i < c.length; i++ {
		seed = sha256Hex(seed)
		seeds[i] = seed
	}
	// Reveal deepest hash first
	for i, j := 0, len(seeds)-1; i < j; i, j = i+1, j-1 {
		seeds[i], seeds[j] = seeds[j], seeds[i]
	}
	c.seeds = seeds
	c.index = 0
}

// Secret returns the current server seed. It must not be published before the
// round using it has ended.
func (c *Chain) Secret() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seeds[c.index]
}

// Commitment returns the sha256 hash of the current seed.
func (c *Chain) Commitment() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sha256Hex(c.seeds[c.index])
}

// ClientSeed returns the public client contribution value.
func (c *Chain) ClientSeed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientSeed
}

// Nonce returns the current round nonce.
func (c *Chain) Nonce() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce
}

// Advance moves to the next seed and increments the nonce. Called exactly
// once per completed round. An exhausted chain regenerates transparently
// from a fresh root with the index reset to zero; the nonce keeps counting.
func (c *Chain) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index++
	c.nonce++
	if c.index >= c.length {
		c.generate()
	}
}

// VerificationData returns the current seed material for opening a round.
func (c *Chain) VerificationData() VerificationData {
	c.mu.Lock()
	defer c.mu.Unlock()
	seed := c.seeds[c.index]
	return VerificationData{
		ServerSeed: seed,
		Commitment: sha256Hex(seed),
		ClientSeed: c.clientSeed,
		Nonce:      c.nonce,
	}
}

// PublicData returns the publishable subset of the current seed material.
func (c *Chain) PublicData() PublicData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PublicData{
		Commitment: sha256Hex(c.seeds[c.index]),
		ClientSeed: c.clientSeed,
		Nonce:      c.nonce,
	}
}
