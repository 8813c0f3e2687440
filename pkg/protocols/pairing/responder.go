package pairing

import (
	"context"
	"errors"
	"time"

	"code.roadauth.org/golang/internal/channel"
	"code.roadauth.org/golang/internal/observability"
	"code.roadauth.org/golang/internal/session"
	"code.roadauth.org/golang/internal/transport"
	"code.roadauth.org/golang/pkg/protocols"
)

const sessionTTL = 2 * time.Minute

// Responder runs verifier sessions for every hello observed on a shared
// medium.
//
// Frames are routed on their Envelope: a hello with an unseen tag opens a new
// VerifierState, anything else is traffic the responder is not a party to and
// is ignored. Handled tags stay in the session store until they expire, a
// replayed hello therefore cannot complete a second session.
type Responder struct {
	Cfg   VerifierCfg
	Store *session.MemStore[session.Tag, *VerifierState]
}

// NewResponder returns a Responder running verifier sessions configured by cfg.
func NewResponder(cfg VerifierCfg) (*Responder, error) {
	err := cfg.Check()
	if nil != err {
		return nil, wrapError(err, "Invalid VerifierCfg")
	}

	store, err := session.NewMemStore[session.Tag, *VerifierState](session.TagFactory{}, sessionTTL)
	if nil != err {
		return nil, wrapError(err, "failed session store creation")
	}

	return &Responder{Cfg: cfg, Store: store}, nil
}

// Session returns the VerifierState handled for tag.
// The bool flag is true if such a session exists.
func (self *Responder) Session(tag session.Tag) (*VerifierState, bool) {
	return self.Store.Get(tag)
}

// Run reads frames from tr until the medium closes, driving one verifier
// session per observed hello. Sessions that fail are dropped silently, the
// next frame is processed regardless.
func (self *Responder) Run(ctx context.Context, tr transport.Transport) error {
	log := observability.GetObservability(ctx).Log().With("handler", "pairing")

	for {
		frame, err := tr.ReadBytes()
		if nil != err {
			if errors.Is(err, channel.ErrClosed) {
				log.Debug("medium closed, stopping")
				return nil
			}
			return wrapError(err, "failed reading frame")
		}

		env, err := PeekEnvelope(frame)
		if nil != err {
			log.Debug("discarding undecodable frame", "error", err)
			continue
		}
		if kindHello != env.Kind {
			continue
		}
		if _, found := self.Store.Get(env.Tag); found {
			log.Debug("discarding hello for already handled session", "tag", env.Tag)
			continue
		}

		state, err := NewVerifierState(self.Cfg)
		if nil != err {
			return wrapError(err, "failed VerifierState construction")
		}
		err = drive(ctx, state, tr, frame)
		if nil != err {
			log.Debug("dropped session", "tag", env.Tag, "error", err)
			continue
		}

		// retain the handled tag so that replays die silently
		err = self.Store.Set(env.Tag, state)
		if nil != err {
			return wrapError(err, "failed session store update")
		}
	}
}

// drive advances state with frame until it completes, fails or awaits peer
// traffic.
func drive(ctx context.Context, fsm *VerifierState, tr transport.Transport, frame []byte) error {
	var errProto error
	var rmsg []byte

	s, sf := fsm.State()
	msg := frame
	for {
		sf, rmsg, errProto = sf(ctx, s, msg)
		if nil != rmsg {
			if err := tr.WriteBytes(rmsg); nil != err {
				return wrapError(err, "failed writing frame")
			}
		}

		switch {
		case nil == errProto:
			// awaiting peer traffic
			fsm.SetState(sf)
			return nil
		case errors.Is(errProto, protocols.Pass):
			msg = nil
		case errors.Is(errProto, protocols.OK):
			fsm.SetState(sf)
			return nil
		default:
			return errProto
		}
	}
}
