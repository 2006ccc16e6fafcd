package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHashAndCompare(t *testing.T) {
	hash, err := GetHash("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.NoError(t, CompareHash(hash, "s3cret-pass"))
	assert.ErrorIs(t, CompareHash(hash, "wrong"), ErrMismatch)

	err = CompareHash("not-a-bcrypt-hash", "s3cret-pass")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMismatch)
}
