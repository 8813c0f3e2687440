// Package cert implements the implicit certificate scheme binding a vehicle
// identity to the trust authority public key.
//
// An issued certificate consists of two group elements:
//
//	Ai = (pt + id*r) * P    the certificate point
//	Ar = r * P              the reconstruction point
//
// with pt the authority master scalar and r a fresh per issuance random. Any
// relying party holding the authority public key Qt = pt*P can check the
// binding through the algebraic identity Ai == Qt + id*Ar, no signature and no
// authority round trip are needed. The scalar behind Ai is handed to the
// registering vehicle over the confidential registration channel, it never
// appears in any certificate field.
package cert

import (
	"bytes"

	"code.roadauth.org/golang/pkg/suite"
)

// Identity is the canonical scalar encoding of a vehicle registration identifier.
type Identity []byte

// Check returns an error if the Identity is not a canonical scalar encoding.
func (self Identity) Check() error {
	err := suite.CheckScalar(self)
	if nil != err {
		return wrapError(err, "invalid Identity")
	}

	return nil
}

// ImplicitCertificate is the public, transmissible part of an issuance.
type ImplicitCertificate struct {
	Ai []byte `json:"ai" cbor:"1,keyasint"` // certificate point
	Ar []byte `json:"ar" cbor:"2,keyasint"` // reconstruction point
}

// Check returns an error if either certificate point is malformed.
func (self ImplicitCertificate) Check() error {
	if err := suite.CheckPoint(self.Ai); nil != err {
		return wrapError(err, "invalid Ai point")
	}
	if err := suite.CheckPoint(self.Ar); nil != err {
		return wrapError(err, "invalid Ar point")
	}

	return nil
}

// KeyPair holds a vehicle private scalar with its matching public point.
type KeyPair struct {
	Private []byte
	Public  []byte
}

// Issue produces the certificate binding id to the authority master scalar,
// using issuance random r. It returns the public certificate and the private
// certificate scalar (pt + id*r) that the registrant needs to derive its key
// pair. The certificate scalar must only ever travel over the confidential
// registration channel.
func Issue(masterScalar []byte, id Identity, r []byte) (ImplicitCertificate, []byte, error) {
	var crt ImplicitCertificate

	idr, err := suite.MulScalars([]byte(id), r)
	if nil != err {
		return crt, nil, wrapError(err, "failed id*r computation")
	}
	certScalar, err := suite.AddScalars(masterScalar, idr)
	if nil != err {
		return crt, nil, wrapError(err, "failed certificate scalar computation")
	}

	crt.Ai, err = suite.ScalarBaseMul(certScalar)
	if nil != err {
		return crt, nil, wrapError(err, "failed Ai computation")
	}
	crt.Ar, err = suite.ScalarBaseMul(r)
	if nil != err {
		return crt, nil, wrapError(err, "failed Ar computation")
	}

	return crt, certScalar, nil
}

// Verify checks the identity binding Ai == Qt + id*Ar against the authority
// public point taPublic. A failed check is flagged ErrVerify, the certificate
// was not issued by the authority owning taPublic for this identity.
func Verify(crt ImplicitCertificate, id Identity, taPublic []byte) error {
	err := crt.Check()
	if nil != err {
		return wrapError(err, "malformed certificate")
	}
	err = id.Check()
	if nil != err {
		return wrapError(err, "malformed identity")
	}

	idAr, err := suite.ScalarMul(crt.Ar, []byte(id))
	if nil != err {
		return wrapError(err, "failed id*Ar computation")
	}
	expected, err := suite.PointAdd(taPublic, idAr)
	if nil != err {
		return wrapError(err, "failed Qt + id*Ar computation")
	}

	equal, err := suite.PointsEqual(crt.Ai, expected)
	if nil != err {
		return wrapError(err, "failed point comparison")
	}
	if !equal {
		return verifyError("certificate point does not bind identity to authority key")
	}

	return nil
}

// DeriveKeyPair turns an issued certificate into a usable vehicle key pair
// using the vehicle chosen blinding scalar rv. The private scalar is
// certScalar*rv and the public point rv*Ai, the function cross checks both
// derivations and errors if certScalar does not match crt.
//
// rv must be freshly drawn for every session, reuse across sessions links the
// sessions and is a protocol violation.
func DeriveKeyPair(crt ImplicitCertificate, certScalar, rv []byte) (KeyPair, error) {
	var kp KeyPair

	priv, err := suite.MulScalars(certScalar, rv)
	if nil != err {
		return kp, wrapError(err, "failed private scalar computation")
	}
	pub, err := suite.ScalarBaseMul(priv)
	if nil != err {
		return kp, wrapError(err, "failed public point computation")
	}

	// rv*Ai must land on the same point, otherwise certScalar & crt diverge.
	control, err := suite.ScalarMul(crt.Ai, rv)
	if nil != err {
		return kp, wrapError(err, "failed rv*Ai computation")
	}
	if !bytes.Equal(pub, control) {
		return kp, newError("certificate scalar does not match certificate point")
	}

	kp.Private = priv
	kp.Public = pub

	return kp, nil
}
