// Package pairing implements the over the air pairing protocol between a
// registered vehicle and a verifying vehicle.
//
// The registrant broadcasts a hello carrying its implicit certificate and a
// session public point derived from a fresh blinding scalar, sealed under the
// cohort group key. Any verifier in range checks the certificate against the
// authority public key, answers with a group key sealed ephemeral public
// point and immediately follows with the agreed payload encrypted under the
// established session key. The registrant closes the session by decrypting
// the payload and checking it matches.
package pairing

import (
	"bytes"
	"context"

	"code.roadauth.org/golang/internal/channel"
	"code.roadauth.org/golang/internal/observability"
	"code.roadauth.org/golang/internal/session"
	"code.roadauth.org/golang/internal/transport"
	"code.roadauth.org/golang/pkg/cert"
	"code.roadauth.org/golang/pkg/protocols"
	"code.roadauth.org/golang/pkg/suite"
	"code.roadauth.org/golang/pkg/vehicle"
)

type RegistrantStateFunc = protocols.StateFunc[*RegistrantState]

type RegistrantExitFunc = protocols.ExitFunc[*RegistrantState]

type RegistrantCfg struct {
	// Cred is the registration credential backing the session.
	Cred vehicle.Credential

	// GroupKey is the symmetric key pre shared by the vehicle cohort. It
	// seals the public points exchanged on the broadcast medium.
	GroupKey []byte

	// Payload is the agreed payload the verifier must prove knowledge of.
	Payload []byte

	// Blinding fixes the session blinding scalar rv. Leave nil to draw a
	// fresh one, which is what production callers want. Fixing it is meant
	// for vector generation.
	Blinding []byte

	// Milestones records session lifecycle events. Optional.
	Milestones *Milestones
}

func (self RegistrantCfg) Check() error {
	err := self.Cred.Check()
	if nil != err {
		return wrapError(err, "invalid Cred")
	}
	if suite.KeySize != len(self.GroupKey) {
		return newError("invalid GroupKey size %d != %d", len(self.GroupKey), suite.KeySize)
	}
	if 0 == len(self.Payload) {
		return newError("empty Payload")
	}
	if nil != self.Blinding {
		if err := suite.CheckScalar(self.Blinding); nil != err {
			return wrapError(err, "invalid Blinding scalar")
		}
	}

	return nil
}

// RegistrantState is the pairing state of the registered vehicle V.
type RegistrantState struct {
	cred       vehicle.Credential
	groupKey   []byte
	payload    []byte
	blinding   []byte
	milestones *Milestones
	tag        session.Tag
	keypair    cert.KeyPair
	sessionKey []byte
	next       RegistrantStateFunc
}

func NewRegistrantState(cfg RegistrantCfg) (*RegistrantState, error) {
	err := cfg.Check()
	if nil != err {
		return nil, wrapError(err, "Invalid RegistrantCfg")
	}

	rv := &RegistrantState{
		cred:       cfg.Cred,
		groupKey:   cfg.GroupKey,
		payload:    cfg.Payload,
		blinding:   cfg.Blinding,
		milestones: cfg.Milestones,
		next:       RegistrantHello,
	}

	return rv, nil
}

// Tag returns the session tag. It is set once RegistrantHello has run.
func (self *RegistrantState) Tag() session.Tag {
	return self.tag
}

// SessionKey returns the established session key, nil unless the protocol
// completed successfully.
func (self *RegistrantState) SessionKey() []byte {
	return self.sessionKey
}

// protocols.Fsm implementation

func (self *RegistrantState) State() (*RegistrantState, RegistrantStateFunc) {
	return self, self.next
}

func (self *RegistrantState) SetState(sf RegistrantStateFunc) {
	self.next = sf
}

func (self *RegistrantState) ExitHandler() RegistrantExitFunc {
	return RegistrantExit
}

func (self *RegistrantState) SetExitHandler(_ RegistrantExitFunc) {
}

func (self *RegistrantState) Initiator() bool {
	return true
}

var _ protocols.Fsm[*RegistrantState] = &RegistrantState{}

// State functions

// RegistrantHello derives the session key pair from the stored credential and
// broadcasts the opening HelloMsg.
func RegistrantHello(ctx context.Context, self *RegistrantState, _ []byte) (sf RegistrantStateFunc, rmsg []byte, err error) {
	sf = RegistrantHello
	var errmsg string

	log := observability.GetObservability(ctx).Log().With("state", "RegistrantHello")

	// draw the session blinding scalar rv
	blinding := self.blinding
	if nil == blinding {
		log.Debug("drawing session blinding scalar")
		blinding, err = suite.NewScalar()
		if nil != err {
			errmsg = "failed drawing blinding scalar"
			log.Debug(errmsg, "error", err)
			return sf, rmsg, wrapError(err, errmsg)
		}
	}

	// derive the session key pair (pv, Qv)
	log.Debug("deriving session key pair")
	keypair, err := cert.DeriveKeyPair(self.cred.Cert, self.cred.CertScalar, blinding)
	if nil != err {
		errmsg = "failed deriving session key pair"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}

	// seal Qv under the group key
	log.Debug("sealing pairing point")
	pairKey, err := suite.SymEncrypt(keypair.Public, self.groupKey)
	if nil != err {
		errmsg = "failed sealing pairing point"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}

	// prepare Registrant: -> HelloMsg
	log.Debug("preparing HelloMsg")
	tag := tagFacto.New()
	hello := HelloMsg{
		Kind:     kindHello,
		Tag:      tag,
		Identity: self.cred.Identity,
		Cert:     self.cred.Cert,
		PairKey:  pairKey,
	}
	rmsg, err = cborSrz.Marshal(hello)
	if nil != err {
		errmsg = "failed CBOR marshal of HelloMsg"
		log.Debug(errmsg, "error", err)
		return sf, nil, wrapError(err, errmsg)
	}

	self.tag = tag
	self.keypair = keypair
	self.milestones.Start(tag)

	log.Debug("OK, switching to RegistrantAgree state")
	return RegistrantAgree, rmsg, nil
}

// RegistrantAgree consumes the RespMsg and establishes the session key.
func RegistrantAgree(ctx context.Context, self *RegistrantState, msg []byte) (sf RegistrantStateFunc, rmsg []byte, err error) {
	sf = RegistrantAgree
	var errmsg string

	log := observability.GetObservability(ctx).Log().With("state", "RegistrantAgree")

	log.Debug("reading RespMsg")
	resp := RespMsg{}
	err = cborSrz.Unmarshal(msg, &resp)
	if nil != err {
		errmsg = "failed CBOR unmarshal of RespMsg"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}
	if self.tag != resp.Tag {
		errmsg = "RespMsg tag does not match session"
		log.Debug(errmsg)
		return sf, rmsg, newError(errmsg)
	}

	log.Debug("opening sealed ephemeral point")
	ephemKey, err := suite.SymDecrypt(resp.EphemKey, self.groupKey)
	if nil != err {
		errmsg = "failed opening sealed ephemeral point"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}

	log.Debug("deriving session key")
	sessionKey, err := suite.DeriveAgreementKey(self.keypair.Private, ephemKey)
	if nil != err {
		errmsg = "failed session key derivation"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}
	self.sessionKey = sessionKey

	log.Debug("OK, switching to RegistrantFinish state")
	return RegistrantFinish, nil, nil
}

// RegistrantFinish decrypts the sealed payload and checks it matches the
// agreed payload.
func RegistrantFinish(ctx context.Context, self *RegistrantState, msg []byte) (sf RegistrantStateFunc, rmsg []byte, err error) {
	sf = RegistrantFinish
	var errmsg string

	log := observability.GetObservability(ctx).Log().With("state", "RegistrantFinish")

	log.Debug("reading PayloadMsg")
	pm := PayloadMsg{}
	err = cborSrz.Unmarshal(msg, &pm)
	if nil != err {
		errmsg = "failed CBOR unmarshal of PayloadMsg"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}
	if self.tag != pm.Tag {
		errmsg = "PayloadMsg tag does not match session"
		log.Debug(errmsg)
		return sf, rmsg, newError(errmsg)
	}

	log.Debug("opening sealed payload")
	payload, err := suite.SymDecrypt(pm.Sealed, self.sessionKey)
	if nil != err {
		errmsg = "failed opening sealed payload"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}
	if !bytes.Equal(self.payload, payload) {
		errmsg = "payload does not match"
		log.Debug(errmsg)
		return sf, rmsg, payloadError(errmsg)
	}

	self.milestones.Complete(self.tag)

	log.Debug("SUCCESS, completed pairing protocol")
	return nil, nil, protocols.OK
}

// RegistrantExit discards the session key unless the protocol completed.
func RegistrantExit(self *RegistrantState, rs error) error {
	if nil != rs {
		self.sessionKey = nil
	}

	return nil
}

// SessionTransport narrows tr to the frames state is a party to.
//
// On a broadcast medium the registrant observes hellos of other registrants
// and answers belonging to other sessions. The returned Transport drops
// everything that does not carry the state session tag. The tag is assigned
// by RegistrantHello, which always runs before the first read.
func SessionTransport(tr transport.Transport, state *RegistrantState) transport.Transport {
	return channel.FilterTransport{
		Transport: tr,
		Keep: func(frame []byte) bool {
			env, err := PeekEnvelope(frame)
			if nil != err {
				return false
			}
			return kindHello != env.Kind && state.Tag() == env.Tag
		},
	}
}
