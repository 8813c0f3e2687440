package suite

import (
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"
)

const persoAgreement = "roadauth-session-key"

// DeriveAgreementKey combines the local private scalar with the peer public
// point into a KeySize byte symmetric key.
//
// The shared group element priv * peerPub feeds HKDF-SHA512 under a fixed
// domain separation salt. Commutativity of scalar multiplication guarantees
// both sides of an exchange derive the same key whenever each holds the
// private scalar matching its announced public point.
func DeriveAgreementKey(priv, peerPub []byte) ([]byte, error) {
	shared, err := ScalarMul(peerPub, priv)
	if nil != err {
		return nil, wrapError(err, "failed shared point computation")
	}

	key := make([]byte, KeySize)
	rdr := hkdf.New(sha512.New, shared, []byte(persoAgreement), nil)
	_, err = io.ReadFull(rdr, key)
	if nil != err {
		return nil, wrapError(err, "failed key expansion")
	}

	return key, nil
}
