// Package crypt encrypts sensitive columns (supplier PAN and bank account)
// with AES-256-GCM. Ciphertext is base64url(nonce || sealed) so it fits in a
// text column.
//
//	type Supplier struct {
//	    PAN crypt.String `gorm:"type:text" json:"-"`
//	}
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql/driver"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/rrnagar/marketplace/config"
)

var ErrDecrypt = errors.New("crypt: decryption failed")

// The key is SHA-256 of ENCRYPTION_KEY (falls back to JWT_SECRET).
func aead() (cipher.AEAD, error) {
	secret := config.EncryptionKey()
	if secret == "" {
		return nil, errors.New("crypt: ENCRYPTION_KEY not configured")
	}
	k := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(k[:])
	if err != nil {
		return nil, fmt.Errorf("crypt: new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func Encrypt(plaintext string) (string, error) {
	gcm, err := aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypt: nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func Decrypt(encoded string) (string, error) {
	gcm, err := aead()
	if err != nil {
		return "", err
	}
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil || len(data) < gcm.NonceSize() {
		return "", ErrDecrypt
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// Mask keeps the last n characters: Mask("ABCDE1234F", 4) == "******234F".
func Mask(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	out := make([]rune, len(r))
	for i := range r {
		if i < len(r)-n {
			out[i] = '*'
		} else {
			out[i] = r[i]
		}
	}
	return string(out)
}

// String is a gorm column type that is encrypted on write and decrypted on
// read. The empty string is stored as-is.
type String string

func (s String) Value() (driver.Value, error) {
	if s == "" {
		return "", nil
	}
	return Encrypt(string(s))
}

func (s *String) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = ""
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("crypt: cannot scan %T into crypt.String", src)
	}
	if raw == "" {
		*s = ""
		return nil
	}
	plain, err := Decrypt(raw)
	if err != nil {
		return err
	}
	*s = String(plain)
	return nil
}
