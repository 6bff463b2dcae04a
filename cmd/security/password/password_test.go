package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastConfig keeps argon2 cheap enough for unit tests.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify(t *testing.T) {
	cfg := fastConfig()

	h, err := cfg.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "$argon2id$v=19$m=8192,t=1,p=1$"))

	ok, err := cfg.Verify(h, "correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cfg.Verify(h, "correct horse battery stapler")
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := cfg.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, h, other, "salts differ")
}

func TestVerify_InvalidHashes(t *testing.T) {
	cfg := fastConfig()
	for _, enc := range []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=16$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,x=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$a2V5a2V5a2V5a2V5a2V5",
	} {
		ok, err := cfg.Verify(enc, "whatever")
		assert.ErrorIs(t, err, ErrInvalidHash, "hash %q", enc)
		assert.False(t, ok)
	}
}

func TestVerify_RefusesOverCostHash(t *testing.T) {
	strong := fastConfig()
	strong.Params.Iterations = 5
	h, err := strong.Hash("correct horse battery staple")
	require.NoError(t, err)

	_, err = fastConfig().Verify(h, "correct horse battery staple")
	require.ErrorIs(t, err, ErrInvalidHash)
}

func TestNeedsRehash(t *testing.T) {
	cfg := fastConfig()
	h, err := cfg.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.False(t, cfg.NeedsRehash(h))

	cfg.Params.Iterations = 2
	assert.True(t, cfg.NeedsRehash(h))
	assert.True(t, cfg.NeedsRehash("garbage"))
}

func TestDummyHash_Verifies(t *testing.T) {
	cfg := fastConfig()
	h, err := cfg.DummyHash()
	require.NoError(t, err)

	ok, err := cfg.Verify(h, "anything at all")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidate_Policy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 10
	cfg.Policy.MaxLength = 16

	assert.ErrorIs(t, cfg.Validate("short"), ErrPasswordTooShort)
	assert.ErrorIs(t, cfg.Validate("this password is definitely too long"), ErrPasswordTooLong)
	assert.ErrorIs(t, cfg.Validate("password123"), ErrWeakPassword)
	assert.ErrorIs(t, cfg.Validate("aaaaaaaaaaaa"), ErrWeakPassword)
	assert.ErrorIs(t, cfg.Validate("12345678901"), ErrWeakPassword)
	assert.NoError(t, cfg.Validate("goodpassw0rd!"))

	// Rune count, not bytes.
	assert.NoError(t, cfg.Validate("ünïcödépäss"))

	cfg.Policy.RejectVeryWeak = false
	assert.NoError(t, cfg.Validate("password123"))
}
