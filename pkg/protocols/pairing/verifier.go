package pairing

import (
	"context"

	"code.roadauth.org/golang/internal/observability"
	"code.roadauth.org/golang/internal/session"
	"code.roadauth.org/golang/pkg/cert"
	"code.roadauth.org/golang/pkg/protocols"
	"code.roadauth.org/golang/pkg/suite"
)

type VerifierStateFunc = protocols.StateFunc[*VerifierState]

type VerifierExitFunc = protocols.ExitFunc[*VerifierState]

type VerifierCfg struct {
	// AuthorityKey is the trust authority public point Qt used to verify
	// registrant certificates.
	AuthorityKey []byte

	// GroupKey is the symmetric key pre shared by the vehicle cohort. It
	// seals the public points exchanged on the broadcast medium.
	GroupKey []byte

	// Payload is the agreed payload sent encrypted once the session key is
	// established.
	Payload []byte

	// Ephemeral fixes the verifier ephemeral scalar pu. Leave nil to draw a
	// fresh one, which is what production callers want. Fixing it is meant
	// for vector generation.
	Ephemeral []byte

	// Milestones records session lifecycle events. Optional.
	Milestones *Milestones
}

func (self VerifierCfg) Check() error {
	err := suite.CheckPoint(self.AuthorityKey)
	if nil != err {
		return wrapError(err, "invalid AuthorityKey")
	}
	if suite.KeySize != len(self.GroupKey) {
		return newError("invalid GroupKey size %d != %d", len(self.GroupKey), suite.KeySize)
	}
	if 0 == len(self.Payload) {
		return newError("empty Payload")
	}
	if nil != self.Ephemeral {
		if err := suite.CheckScalar(self.Ephemeral); nil != err {
			return wrapError(err, "invalid Ephemeral scalar")
		}
	}

	return nil
}

// VerifierState is the pairing state of the verifying vehicle U.
type VerifierState struct {
	authorityKey []byte
	groupKey     []byte
	payload      []byte
	ephemeral    []byte
	milestones   *Milestones
	tag          session.Tag
	peerIdentity cert.Identity
	sessionKey   []byte
	next         VerifierStateFunc
}

func NewVerifierState(cfg VerifierCfg) (*VerifierState, error) {
	err := cfg.Check()
	if nil != err {
		return nil, wrapError(err, "Invalid VerifierCfg")
	}

	rv := &VerifierState{
		authorityKey: cfg.AuthorityKey,
		groupKey:     cfg.GroupKey,
		payload:      cfg.Payload,
		ephemeral:    cfg.Ephemeral,
		milestones:   cfg.Milestones,
		next:         VerifierHello,
	}

	return rv, nil
}

// Tag returns the session tag. It is set once VerifierHello has run.
func (self *VerifierState) Tag() session.Tag {
	return self.tag
}

// PeerIdentity returns the identity claimed by the registrant, valid once its
// certificate verified.
func (self *VerifierState) PeerIdentity() cert.Identity {
	return self.peerIdentity
}

// SessionKey returns the established session key, nil unless the protocol
// completed successfully.
func (self *VerifierState) SessionKey() []byte {
	return self.sessionKey
}

// protocols.Fsm implementation

func (self *VerifierState) State() (*VerifierState, VerifierStateFunc) {
	return self, self.next
}

func (self *VerifierState) SetState(sf VerifierStateFunc) {
	self.next = sf
}

func (self *VerifierState) ExitHandler() VerifierExitFunc {
	return VerifierExit
}

func (self *VerifierState) SetExitHandler(_ VerifierExitFunc) {
}

func (self *VerifierState) Initiator() bool {
	return false
}

var _ protocols.Fsm[*VerifierState] = &VerifierState{}

// State functions

// VerifierHello opens the sealed pairing point, checks the registrant
// certificate and answers with the sealed verifier ephemeral public point.
// Nothing is sent when the seal does not open or the certificate does not
// verify, the session dies silently.
func VerifierHello(ctx context.Context, self *VerifierState, msg []byte) (sf VerifierStateFunc, rmsg []byte, err error) {
	sf = VerifierHello
	var errmsg string

	log := observability.GetObservability(ctx).Log().With("state", "VerifierHello")

	log.Debug("reading HelloMsg")
	hello := HelloMsg{}
	err = cborSrz.Unmarshal(msg, &hello)
	if nil != err {
		errmsg = "failed CBOR unmarshal of HelloMsg"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}

	// recover Qv, a hello sealed under another group key dies here
	log.Debug("opening sealed pairing point")
	pairKey, err := suite.SymDecrypt(hello.PairKey, self.groupKey)
	if nil != err {
		errmsg = "failed opening sealed pairing point"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}

	// control the certificate binding before answering anything
	log.Debug("verifying registrant certificate")
	err = cert.Verify(hello.Cert, hello.Identity, self.authorityKey)
	if nil != err {
		errmsg = "failed registrant certificate verification"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}

	self.tag = hello.Tag
	self.peerIdentity = hello.Identity
	self.milestones.Start(hello.Tag)

	// draw the ephemeral scalar pu
	ephemeral := self.ephemeral
	if nil == ephemeral {
		log.Debug("drawing ephemeral scalar")
		ephemeral, err = suite.NewScalar()
		if nil != err {
			errmsg = "failed drawing ephemeral scalar"
			log.Debug(errmsg, "error", err)
			return sf, rmsg, wrapError(err, errmsg)
		}
	}
	ephemKey, err := suite.ScalarBaseMul(ephemeral)
	if nil != err {
		errmsg = "failed ephemeral public point computation"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}

	// establish the session key from pu and the registrant pairing point Qv
	log.Debug("deriving session key")
	sessionKey, err := suite.DeriveAgreementKey(ephemeral, pairKey)
	if nil != err {
		errmsg = "failed session key derivation"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}
	self.sessionKey = sessionKey

	// seal Qu under the group key
	log.Debug("sealing ephemeral point")
	sealedEphem, err := suite.SymEncrypt(ephemKey, self.groupKey)
	if nil != err {
		errmsg = "failed sealing ephemeral point"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}

	// prepare Verifier: -> RespMsg
	log.Debug("preparing RespMsg")
	resp := RespMsg{Kind: kindResp, Tag: hello.Tag, EphemKey: sealedEphem}
	rmsg, err = cborSrz.Marshal(resp)
	if nil != err {
		errmsg = "failed CBOR marshal of RespMsg"
		log.Debug(errmsg, "error", err)
		return sf, nil, wrapError(err, errmsg)
	}

	log.Debug("OK, switching to VerifierSendPayload state")
	return VerifierSendPayload, rmsg, protocols.Pass
}

// VerifierSendPayload seals the agreed payload under the session key and
// closes the session.
func VerifierSendPayload(ctx context.Context, self *VerifierState, _ []byte) (sf VerifierStateFunc, rmsg []byte, err error) {
	sf = VerifierSendPayload
	var errmsg string

	log := observability.GetObservability(ctx).Log().With("state", "VerifierSendPayload")

	log.Debug("sealing payload")
	sealed, err := suite.SymEncrypt(self.payload, self.sessionKey)
	if nil != err {
		errmsg = "failed sealing payload"
		log.Debug(errmsg, "error", err)
		return sf, rmsg, wrapError(err, errmsg)
	}

	log.Debug("preparing PayloadMsg")
	pm := PayloadMsg{Kind: kindPayload, Tag: self.tag, Sealed: sealed}
	rmsg, err = cborSrz.Marshal(pm)
	if nil != err {
		errmsg = "failed CBOR marshal of PayloadMsg"
		log.Debug(errmsg, "error", err)
		return sf, nil, wrapError(err, errmsg)
	}

	self.milestones.Complete(self.tag)

	log.Debug("SUCCESS, completed pairing protocol")
	return nil, rmsg, protocols.OK
}

// VerifierExit discards the session key unless the protocol completed.
func VerifierExit(self *VerifierState, rs error) error {
	if nil != rs {
		self.sessionKey = nil
	}

	return nil
}
