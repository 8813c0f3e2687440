package pairing

import (
	"code.roadauth.org/golang/internal/session"
	"code.roadauth.org/golang/internal/transport"
	"code.roadauth.org/golang/pkg/cert"
)

// message kinds, carried in the Kind field of every pairing message
const (
	kindHello   = 1
	kindResp    = 2
	kindPayload = 3
)

var cborSrz transport.SafeSerializer

var tagFacto session.TagFactory

func init() {
	cborSrz = transport.WrapInSafeSerializer(transport.CBORSerializer{})
}

// Envelope is the common prefix of all pairing messages.
//
// Peeking the Envelope of a frame is enough to route it, the full message
// needs not be decoded.
type Envelope struct {
	Kind uint8       `cbor:"1,keyasint"`
	Tag  session.Tag `cbor:"2,keyasint"`
}

func (self Envelope) Check() error {
	if self.Kind < kindHello || self.Kind > kindPayload {
		return newError("unknown message kind %d", self.Kind)
	}
	err := tagFacto.Check(self.Tag)
	if nil != err {
		return wrapError(err, "invalid session tag")
	}

	return nil
}

// PeekEnvelope decodes the Envelope of a serialized pairing message.
func PeekEnvelope(frame []byte) (Envelope, error) {
	env := Envelope{}
	err := cborSrz.Unmarshal(frame, &env)
	if nil != err {
		return env, wrapError(err, "failed decoding envelope")
	}

	return env, nil
}

// HelloMsg starts a pairing session. The registrant broadcasts its identity,
// its implicit certificate and the pairing public point Qv derived for this
// session, sealed under the cohort group key.
type HelloMsg struct {
	Kind     uint8                    `cbor:"1,keyasint"`
	Tag      session.Tag              `cbor:"2,keyasint"`
	Identity cert.Identity            `cbor:"3,keyasint"`
	Cert     cert.ImplicitCertificate `cbor:"4,keyasint"`
	PairKey  []byte                   `cbor:"5,keyasint"` // Qv sealed under the group key
}

func (self HelloMsg) Check() error {
	if kindHello != self.Kind {
		return newError("invalid HelloMsg kind %d", self.Kind)
	}
	if err := tagFacto.Check(self.Tag); nil != err {
		return wrapError(err, "invalid HelloMsg tag")
	}
	if err := self.Identity.Check(); nil != err {
		return wrapError(err, "invalid HelloMsg identity")
	}
	if err := self.Cert.Check(); nil != err {
		return wrapError(err, "invalid HelloMsg certificate")
	}
	if 0 == len(self.PairKey) {
		return newError("empty HelloMsg pairing key")
	}

	return nil
}

// RespMsg answers a HelloMsg with the verifier ephemeral public point Qu,
// sealed under the cohort group key.
type RespMsg struct {
	Kind     uint8       `cbor:"1,keyasint"`
	Tag      session.Tag `cbor:"2,keyasint"`
	EphemKey []byte      `cbor:"3,keyasint"` // Qu sealed under the group key
}

func (self RespMsg) Check() error {
	if kindResp != self.Kind {
		return newError("invalid RespMsg kind %d", self.Kind)
	}
	if err := tagFacto.Check(self.Tag); nil != err {
		return wrapError(err, "invalid RespMsg tag")
	}
	if 0 == len(self.EphemKey) {
		return newError("empty RespMsg ephemeral key")
	}

	return nil
}

// PayloadMsg closes a pairing session, Sealed holds the agreed payload
// encrypted under the established session key.
type PayloadMsg struct {
	Kind   uint8       `cbor:"1,keyasint"`
	Tag    session.Tag `cbor:"2,keyasint"`
	Sealed []byte      `cbor:"3,keyasint"`
}

func (self PayloadMsg) Check() error {
	if kindPayload != self.Kind {
		return newError("invalid PayloadMsg kind %d", self.Kind)
	}
	if err := tagFacto.Check(self.Tag); nil != err {
		return wrapError(err, "invalid PayloadMsg tag")
	}
	if 0 == len(self.Sealed) {
		return newError("empty PayloadMsg seal")
	}

	return nil
}
