package heptazip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordZero(t *testing.T) {
	t.Parallel()

	pw := newPassword("hunter2")
	assert.Equal(t, "hunter2", pw.String())

	pw.zero()
	assert.Equal(t, "\x00\x00\x00\x00\x00\x00\x00", pw.String())
}

func TestNewAESEncryptionParamsDefaultsCycles(t *testing.T) {
	t.Parallel()

	p, err := newAESEncryptionParams(-1)
	require.NoError(t, err)
	assert.Equal(t, defaultAESCycles, p.cycles)
	assert.Len(t, p.salt, 16) //nolint:mnd
	assert.Len(t, p.iv, 16)   //nolint:mnd

	p, err = newAESEncryptionParams(100) //nolint:mnd
	require.NoError(t, err)
	assert.Equal(t, defaultAESCycles, p.cycles)
}

func TestAESEncryptionParamsPropertiesBlobRoundTrip(t *testing.T) {
	t.Parallel()

	p, err := newAESEncryptionParams(19) //nolint:mnd
	require.NoError(t, err)

	blob, err := p.propertiesBlob()
	require.NoError(t, err)

	// flags byte: low 6 bits cycles, bit 7 salt-present, bit 6 IV-present.
	assert.Equal(t, byte(19)|1<<6|1<<7, blob[0]) //nolint:mnd
	assert.Equal(t, byte(len(p.salt)-1)<<4|byte(len(p.iv)-1), blob[1])
	assert.Equal(t, p.salt, blob[2:2+len(p.salt)])
	assert.Equal(t, p.iv, blob[2+len(p.salt):])
}

func TestAESEncryptionParamsPropertiesBlobRejectsOversizeSalt(t *testing.T) {
	t.Parallel()

	p := &aesEncryptionParams{cycles: 19, salt: make([]byte, 16), iv: make([]byte, 16)} //nolint:mnd
	p.salt = append(p.salt, make([]byte, 16)...)

	_, err := p.propertiesBlob()
	assert.ErrorIs(t, err, errShortSalt)
}

func TestDeriveAESKeyDeterministic(t *testing.T) {
	t.Parallel()

	params := &aesEncryptionParams{cycles: 4, salt: []byte("saltsaltsaltsalt"), iv: make([]byte, 16)} //nolint:mnd

	k1, err := deriveAESKey(newPassword("correct horse"), params)
	require.NoError(t, err)

	k2, err := deriveAESKey(newPassword("correct horse"), params)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, cryptoKeyLen)

	k3, err := deriveAESKey(newPassword("wrong password"), params)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestDeriveAESKeyRawMode(t *testing.T) {
	t.Parallel()

	params := &aesEncryptionParams{cycles: 0x3f} //nolint:mnd

	key, err := deriveAESKey(newPassword("x"), params)
	require.NoError(t, err)
	assert.Len(t, key, cryptoKeyLen)
}

func TestNewAESEncrypterRoundTrip(t *testing.T) {
	t.Parallel()

	pw := newPassword("hunter2")

	mode, props, err := newAESEncrypter(pw, 19) //nolint:mnd
	require.NoError(t, err)
	require.NotEmpty(t, props)

	plain := []byte("0123456789abcdef")
	cipherText := make([]byte, len(plain))
	mode.CryptBlocks(cipherText, plain)

	assert.NotEqual(t, plain, cipherText)
}
