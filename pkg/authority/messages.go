package authority

import (
	"code.roadauth.org/golang/pkg/cert"
	"code.roadauth.org/golang/pkg/suite"
)

// RegisterReq asks the authority to issue a certificate for Identity.
type RegisterReq struct {
	Identity cert.Identity `cbor:"1,keyasint"`
}

func (self RegisterReq) Check() error {
	err := self.Identity.Check()
	if nil != err {
		return wrapError(err, "invalid RegisterReq")
	}

	return nil
}

// RegisterResp carries an issued Grant back to the registrant.
type RegisterResp struct {
	Grant Grant `cbor:"1,keyasint"`
}

func (self RegisterResp) Check() error {
	err := self.Grant.Check()
	if nil != err {
		return wrapError(err, "invalid RegisterResp")
	}

	return nil
}

// Grant is the outcome of a successful registration.
//
// Cert is public and appears in pairing traffic. CertScalar is the private
// certificate scalar (pt + id*r), it must only ever travel over the
// confidential registration channel and stays inside the vehicle credential
// store afterwards.
type Grant struct {
	Cert       cert.ImplicitCertificate `cbor:"1,keyasint"`
	CertScalar []byte                   `cbor:"2,keyasint"`
}

func (self Grant) Check() error {
	err := self.Cert.Check()
	if nil != err {
		return wrapError(err, "invalid Grant certificate")
	}
	err = suite.CheckScalar(self.CertScalar)
	if nil != err {
		return wrapError(err, "invalid Grant certificate scalar")
	}

	return nil
}
