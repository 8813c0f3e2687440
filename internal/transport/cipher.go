package transport

import (
	"code.roadauth.org/golang/pkg/suite"
)

// Cipher encrypts & decrypts message frames.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// KeyCipher is a Cipher bound to a single symmetric key, typically the cohort
// group key or an established session key.
type KeyCipher struct {
	Key []byte
}

// Encrypt seals plaintext under the bound key using the suite default AEAD.
func (self KeyCipher) Encrypt(plaintext []byte) ([]byte, error) {
	srz, err := suite.SymEncrypt(plaintext, self.Key)
	return srz, wrapError(err, "failed SymEncrypt") // nil if err is nil
}

// Decrypt opens ciphertext under the bound key.
// suite.ErrDecrypt is preserved in the error chain for callers categorizing failures.
func (self KeyCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	msg, err := suite.SymDecrypt(ciphertext, self.Key)
	return msg, wrapError(err, "failed SymDecrypt") // nil if err is nil
}

var _ Cipher = KeyCipher{}
