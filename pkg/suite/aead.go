package suite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"

	"code.roadauth.org/golang/internal/utils"
)

const (
	AEAD_CHACHA20_POLY1305 = "CHACHA20/POLY1305"
	AEAD_AES256_GCM        = "AES256/GCM"

	// DefaultAEAD protects group key broadcasts and session payloads unless
	// callers select another registered algorithm.
	DefaultAEAD = AEAD_CHACHA20_POLY1305
)

// AEADFactory instantiates an AEAD for a KeySize byte key.
type AEADFactory func(key []byte) (cipher.AEAD, error)

var aeadRegistry *utils.Registry[string, AEADFactory]

// MustRegisterAEAD adds factory to the AEAD registry. It panics if name is already in use.
func MustRegisterAEAD(name string, factory AEADFactory) {
	err := RegisterAEAD(name, factory)
	if nil != err {
		panic(err)
	}
}

// RegisterAEAD adds factory to the AEAD registry. It errors if name is already in use or factory is nil.
func RegisterAEAD(name string, factory AEADFactory) error {
	if nil == factory {
		return newError("nil factory can not be registered")
	}
	return wrapError(
		utils.RegistrySet(aeadRegistry, name, factory),
		"failed registering AEAD algorithm, %s",
		name,
	)
}

// GetAEAD loads an AEAD factory from the registry. It errors if no factory was registered with name.
func GetAEAD(name string) (AEADFactory, error) {
	factory, found := utils.RegistryGet(aeadRegistry, name)
	if !found {
		return nil, newError("unsupported AEAD algorithm, %s", name)
	}
	return factory, nil
}

// ListAEADs returns a slice containing the names of the registered AEAD algorithms.
func ListAEADs() []string {
	aeadIdx := utils.RegistryEntries(aeadRegistry)
	rv := make([]string, 0, len(aeadIdx))
	for name := range aeadIdx {
		rv = append(rv, name)
	}
	return rv
}

// SymEncrypt encrypts plaintext under key using the DefaultAEAD.
// The returned ciphertext carries a random nonce prefix followed by the AEAD
// output, SymDecrypt consumes this exact layout.
func SymEncrypt(plaintext, key []byte) ([]byte, error) {
	aead, err := newDefaultAEAD(key)
	if nil != err {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	_, err = rand.Read(nonce)
	if nil != err {
		return nil, wrapError(err, "failed reading nonce entropy")
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// SymDecrypt authenticates & decrypts a SymEncrypt ciphertext.
// Authentication failures and malformed inputs are flagged ErrDecrypt.
func SymDecrypt(ciphertext, key []byte) ([]byte, error) {
	aead, err := newDefaultAEAD(key)
	if nil != err {
		return nil, err
	}

	nsz := aead.NonceSize()
	if len(ciphertext) < nsz+aead.Overhead() {
		return nil, newDecryptError("ciphertext shorter than nonce & tag")
	}

	plaintext, err := aead.Open(nil, ciphertext[:nsz], ciphertext[nsz:], nil)
	if nil != err {
		return nil, decryptError(err, "failed AEAD Open")
	}

	return plaintext, nil
}

func newDefaultAEAD(key []byte) (cipher.AEAD, error) {
	factory, err := GetAEAD(DefaultAEAD)
	if nil != err {
		return nil, err
	}
	aead, err := factory(key)
	return aead, wrapError(err, "failed AEAD construction") // nil if err is nil
}

func init() {
	aeadRegistry = utils.NewRegistry[string, AEADFactory]()
	MustRegisterAEAD(AEAD_CHACHA20_POLY1305, func(key []byte) (cipher.AEAD, error) {
		if len(key) != KeySize {
			return nil, newError("invalid key size %d != %d", len(key), KeySize)
		}
		return chacha20poly1305.New(key)
	})
	MustRegisterAEAD(AEAD_AES256_GCM, func(key []byte) (cipher.AEAD, error) {
		if len(key) != KeySize {
			return nil, newError("invalid key size %d != %d", len(key), KeySize)
		}
		block, err := aes.NewCipher(key)
		if nil != err {
			return nil, err
		}
		return cipher.NewGCM(block)
	})
}
