// Package vehicle holds the credential material a registered vehicle carries
// and the stores that persist it.
package vehicle

import (
	"time"

	"code.roadauth.org/golang/pkg/cert"
	"code.roadauth.org/golang/pkg/suite"
)

// Credential is the registration outcome a vehicle keeps for pairing.
//
// Cert and Identity appear on the air during pairing. CertScalar and the key
// pairs derived from it never leave the store.
type Credential struct {
	Identity     cert.Identity            `cbor:"1,keyasint"`
	Cert         cert.ImplicitCertificate `cbor:"2,keyasint"`
	CertScalar   []byte                   `cbor:"3,keyasint"`
	AuthorityKey []byte                   `cbor:"4,keyasint"` // authority public point Qt
	CreatedAt    time.Time                `cbor:"5,keyasint"`
}

// Check returns an error if any credential field is malformed or if the
// certificate does not verify against the recorded authority key.
func (self Credential) Check() error {
	err := self.Identity.Check()
	if nil != err {
		return wrapError(err, "invalid Identity")
	}
	err = self.Cert.Check()
	if nil != err {
		return wrapError(err, "invalid Cert")
	}
	err = suite.CheckScalar(self.CertScalar)
	if nil != err {
		return wrapError(err, "invalid CertScalar")
	}
	err = cert.Verify(self.Cert, self.Identity, self.AuthorityKey)
	if nil != err {
		return wrapError(err, "credential certificate does not verify")
	}

	return nil
}

// CredStore persists vehicle credentials indexed by identity.
type CredStore interface {
	SaveCredential(cred Credential) error
	LoadCredential(identity []byte, dst *Credential) (bool, error)
	RemoveCredential(identity []byte) (bool, error)
}
