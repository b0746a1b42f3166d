package crypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/config"
)

func TestEncryptDecrypt(t *testing.T) {
	config.Set("ENCRYPTION_KEY", "test-key")

	enc, err := Encrypt("ABCDE1234F")
	require.NoError(t, err)
	assert.NotContains(t, enc, "ABCDE1234F")

	again, err := Encrypt("ABCDE1234F")
	require.NoError(t, err)
	assert.NotEqual(t, enc, again, "nonce must differ per call")

	plain, err := Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "ABCDE1234F", plain)

	_, err = Decrypt(enc[:len(enc)-4] + "AAAA")
	assert.ErrorIs(t, err, ErrDecrypt)
	_, err = Decrypt("not base64!")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestStringColumn(t *testing.T) {
	config.Set("ENCRYPTION_KEY", "test-key")

	v, err := String("123456789012").Value()
	require.NoError(t, err)
	stored, ok := v.(string)
	require.True(t, ok)
	assert.NotEqual(t, "123456789012", stored)

	var s String
	require.NoError(t, s.Scan([]byte(stored)))
	assert.Equal(t, String("123456789012"), s)

	empty, err := String("").Value()
	require.NoError(t, err)
	assert.Equal(t, "", empty)
	require.NoError(t, s.Scan(nil))
	assert.Equal(t, String(""), s)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "******234F", Mask("ABCDE1234F", 4))
	assert.Equal(t, "12", Mask("12", 4))
}
