package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8}

func TestHashPassword_Verify(t *testing.T) {
	h := HashPassword("tomatoes", testParams)
	assert.True(t, strings.HasPrefix(h, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := VerifyPassword("tomatoes", h)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("potatoes", h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_SaltDiffers(t *testing.T) {
	assert.NotEqual(t, HashPassword("same", testParams), HashPassword("same", testParams))
}

func TestVerifyPassword_Malformed(t *testing.T) {
	for _, h := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5",
	} {
		_, err := VerifyPassword("pw", h)
		assert.ErrorIs(t, err, ErrMalformedHash, h)
	}
}
