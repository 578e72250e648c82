package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignDeterministic(t *testing.T) {
	payload := []byte(`{"roundId":"R-1","amount":"100"}`)
	assert.Equal(t, Sign(payload, "secret"), Sign(payload, "secret"))
	assert.NotEqual(t, Sign(payload, "secret"), Sign(payload, "other"))
	assert.Len(t, Sign(payload, "secret"), 64)
}

func TestValidateSignature(t *testing.T) {
	payload := []byte(`{"roundId":"R-1"}`)
	sig := Sign(payload, "secret")

	assert.True(t, ValidateSignature(payload, sig, "secret"))
	assert.False(t, ValidateSignature(payload, sig, "wrong-secret"))
	assert.False(t, ValidateSignature([]byte(`{"roundId":"R-2"}`), sig, "secret"))
	assert.False(t, ValidateSignature(payload, "deadbeef", "secret"))
}
