// Package authority implements the trust authority of the pairing scheme.
//
// The authority holds the master scalar pt and issues implicit certificates
// to registering vehicles. Registration happens over a confidential channel
// secured with a provisioning key, modeling the controlled environment where
// vehicles are fitted with credentials. Every issuance is recorded in a
// Journal so that an identity can hold at most one certificate.
package authority

import (
	"context"
	"time"

	"code.roadauth.org/golang/internal/observability"
	"code.roadauth.org/golang/internal/transport"
	"code.roadauth.org/golang/pkg/cert"
	"code.roadauth.org/golang/pkg/suite"
)

// Cfg configures an Authority.
type Cfg struct {
	// Master is the authority master scalar pt. Leave nil to generate a fresh
	// one at construction.
	Master []byte

	// ProvisionKey secures the registration channel.
	ProvisionKey []byte

	// Journal records issuances. Defaults to a MemJournal when nil.
	Journal Journal
}

func (self Cfg) Check() error {
	if nil != self.Master {
		if err := suite.CheckScalar(self.Master); nil != err {
			return wrapError(err, "invalid Master scalar")
		}
	}
	if suite.KeySize != len(self.ProvisionKey) {
		return newError("invalid ProvisionKey, length %d != %d", len(self.ProvisionKey), suite.KeySize)
	}

	return nil
}

// Authority issues implicit certificates.
type Authority struct {
	master       []byte
	public       []byte
	provisionKey []byte
	journal      Journal
}

// New returns an Authority configured by cfg.
func New(cfg Cfg) (*Authority, error) {
	err := cfg.Check()
	if nil != err {
		return nil, wrapError(err, "invalid Cfg")
	}

	master := cfg.Master
	if nil == master {
		master, err = suite.NewScalar()
		if nil != err {
			return nil, wrapError(err, "failed master scalar generation")
		}
	}
	public, err := suite.ScalarBaseMul(master)
	if nil != err {
		return nil, wrapError(err, "failed public key computation")
	}

	journal := cfg.Journal
	if nil == journal {
		journal = NewMemJournal()
	}

	rv := &Authority{
		master:       master,
		public:       public,
		provisionKey: cfg.ProvisionKey,
		journal:      journal,
	}

	return rv, nil
}

// PublicKey returns the authority public point Qt = pt*P.
// Relying parties use it to verify issued certificates.
func (self *Authority) PublicKey() []byte {
	public := make([]byte, len(self.public))
	copy(public, self.public)

	return public
}

// Register issues a certificate for id.
//
// Each call draws a fresh issuance random, so certificates of distinct
// registrants never share a reconstruction point. Register errors with
// ErrDuplicate if id already holds a certificate.
func (self *Authority) Register(ctx context.Context, id cert.Identity) (Grant, error) {
	var grant Grant

	err := id.Check()
	if nil != err {
		return grant, wrapError(err, "invalid identity")
	}

	_, found, err := self.journal.Lookup(ctx, []byte(id))
	if nil != err {
		return grant, wrapError(err, "failed journal lookup")
	}
	if found {
		return grant, duplicateError("identity already registered")
	}

	r, err := suite.NewScalar()
	if nil != err {
		return grant, wrapError(err, "failed issuance random generation")
	}

	crt, certScalar, err := cert.Issue(self.master, id, r)
	if nil != err {
		return grant, wrapError(err, "failed certificate issuance")
	}

	entry := JournalEntry{
		Identity: []byte(id),
		Ai:       crt.Ai,
		Ar:       crt.Ar,
		IssuedAt: time.Now(),
	}
	err = self.journal.Record(ctx, entry)
	if nil != err {
		return grant, wrapError(err, "failed journal record")
	}

	grant = Grant{Cert: crt, CertScalar: certScalar}

	return grant, nil
}

// ServeOnce handles a single registration request on tr.
//
// The request and the response travel encrypted under the provisioning key.
func (self *Authority) ServeOnce(ctx context.Context, tr transport.Transport) error {
	log := observability.GetObservability(ctx).Log().With("role", "authority")
	mt := self.messageTransport(tr)

	req := RegisterReq{}
	err := mt.ReadMessage(&req)
	if nil != err {
		return wrapError(err, "failed reading RegisterReq")
	}

	log.Debug("registering identity")
	grant, err := self.Register(ctx, req.Identity)
	if nil != err {
		log.Debug("registration refused", "error", err)
		return wrapError(err, "failed registration")
	}

	err = mt.WriteMessage(RegisterResp{Grant: grant})
	if nil != err {
		return wrapError(err, "failed writing RegisterResp")
	}
	log.Debug("certificate issued")

	return nil
}

// Serve handles registration requests on tr until an error occurs.
func (self *Authority) Serve(ctx context.Context, tr transport.Transport) error {
	for {
		err := self.ServeOnce(ctx, tr)
		if nil != err {
			return err
		}
	}
}

func (self *Authority) messageTransport(tr transport.Transport) transport.MessageTransport {
	srz := transport.WrapInSafeSerializer(transport.CBORSerializer{})
	srz.Cipher = transport.KeyCipher{Key: self.provisionKey}

	return transport.MessageTransport{Transport: tr, S: srz}
}

// Request performs the registrant side of a registration exchange over tr.
//
// provisionKey must match the authority provisioning key, the exchange is
// encrypted end to end under it.
func Request(ctx context.Context, tr transport.Transport, provisionKey []byte, id cert.Identity) (Grant, error) {
	var grant Grant

	log := observability.GetObservability(ctx).Log().With("role", "registrant")

	srz := transport.WrapInSafeSerializer(transport.CBORSerializer{})
	srz.Cipher = transport.KeyCipher{Key: provisionKey}
	mt := transport.MessageTransport{Transport: tr, S: srz}

	log.Debug("requesting certificate issuance")
	err := mt.WriteMessage(RegisterReq{Identity: id})
	if nil != err {
		return grant, wrapError(err, "failed writing RegisterReq")
	}

	resp := RegisterResp{}
	err = mt.ReadMessage(&resp)
	if nil != err {
		return grant, wrapError(err, "failed reading RegisterResp")
	}
	log.Debug("certificate received")

	return resp.Grant, nil
}
