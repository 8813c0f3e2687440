package pairing

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"code.roadauth.org/golang/internal/channel"
	"code.roadauth.org/golang/internal/observability"
	"code.roadauth.org/golang/internal/session"
	"code.roadauth.org/golang/pkg/authority"
	"code.roadauth.org/golang/pkg/cert"
	"code.roadauth.org/golang/pkg/protocols"
	"code.roadauth.org/golang/pkg/suite"
	"code.roadauth.org/golang/pkg/vehicle"
)

var testPayload = []byte("approach-clearance")

var testGroupKey = bytes.Repeat([]byte{0x47}, suite.KeySize)

// newTestCredential registers idScalar with a fresh authority and returns the
// resulting credential together with the authority public key.
func newTestCredential(t *testing.T, idScalar uint64) (vehicle.Credential, []byte) {
	t.Helper()

	ta, err := authority.New(authority.Cfg{ProvisionKey: make([]byte, suite.KeySize)})
	if nil != err {
		t.Fatalf("failed creating Authority, got error %v", err)
	}

	id := cert.Identity(suite.ScalarFromUint64(idScalar))
	grant, err := ta.Register(context.Background(), id)
	if nil != err {
		t.Fatalf("failed Register, got error %v", err)
	}

	cred := vehicle.Credential{
		Identity:     id,
		Cert:         grant.Cert,
		CertScalar:   grant.CertScalar,
		AuthorityKey: ta.PublicKey(),
		CreatedAt:    time.Now(),
	}

	return cred, ta.PublicKey()
}

func TestPairingEndToEnd(t *testing.T) {
	observability.SetTestDebugLogging(t)
	ctx := context.Background()

	cred, authorityKey := newTestCredential(t, 1001)

	bus := channel.NewBus()
	uFeed, err := bus.Join("verifier")
	if nil != err {
		t.Fatalf("failed joining verifier, got error %v", err)
	}
	vFeed, err := bus.Join("registrant")
	if nil != err {
		t.Fatalf("failed joining registrant, got error %v", err)
	}

	uMilestones := NewMilestones()
	responder, err := NewResponder(VerifierCfg{
		AuthorityKey: authorityKey,
		GroupKey:     testGroupKey,
		Payload:      testPayload,
		Milestones:   uMilestones,
	})
	if nil != err {
		t.Fatalf("failed creating Responder, got error %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- responder.Run(ctx, uFeed)
	}()

	vMilestones := NewMilestones()
	state, err := NewRegistrantState(RegistrantCfg{
		Cred:       cred,
		GroupKey:   testGroupKey,
		Payload:    testPayload,
		Milestones: vMilestones,
	})
	if nil != err {
		t.Fatalf("failed creating RegistrantState, got error %v", err)
	}
	err = protocols.Run(ctx, state, SessionTransport(vFeed, state))
	if nil != err {
		t.Fatalf("failed registrant Run, got error %v", err)
	}

	bus.Close()
	err = <-done
	if nil != err {
		t.Fatalf("failed responder Run, got error %v", err)
	}

	// both sides hold the same session key
	vKey := state.SessionKey()
	if suite.KeySize != len(vKey) {
		t.Fatalf("failed registrant key control, got %d bytes", len(vKey))
	}
	uState, found := responder.Session(state.Tag())
	if !found {
		t.Fatal("failed responder session lookup")
	}
	if !slices.Equal(vKey, uState.SessionKey()) {
		t.Fatal("failed key agreement control, session keys differ")
	}
	if string(uState.PeerIdentity()) != string(cred.Identity) {
		t.Fatal("failed peer identity control")
	}

	// each side started and completed exactly one session
	for name, ms := range map[string]*Milestones{"registrant": vMilestones, "verifier": uMilestones} {
		started, completed := ms.Counts()
		if 1 != started || 1 != completed {
			t.Fatalf("failed %s milestone control, got %d started, %d completed", name, started, completed)
		}
		if 1 != ms.Completed(state.Tag()) {
			t.Fatalf("failed %s milestone tag control", name)
		}
	}
}

func TestPairingFixedVectors(t *testing.T) {
	ctx := context.Background()

	// pt = 7, id = 3, r = 5, rv = 2, pu = 9
	master := suite.ScalarFromUint64(7)
	authorityKey, err := suite.ScalarBaseMul(master)
	if nil != err {
		t.Fatalf("failed authority key computation, got error %v", err)
	}
	id := cert.Identity(suite.ScalarFromUint64(3))
	crt, certScalar, err := cert.Issue(master, id, suite.ScalarFromUint64(5))
	if nil != err {
		t.Fatalf("failed certificate issuance, got error %v", err)
	}

	// certificate scalar is pt + id*r = 22
	if !slices.Equal(suite.ScalarFromUint64(22), certScalar) {
		t.Fatalf("failed certificate scalar control, got %x", certScalar)
	}

	cred := vehicle.Credential{
		Identity:     id,
		Cert:         crt,
		CertScalar:   certScalar,
		AuthorityKey: authorityKey,
		CreatedAt:    time.Now(),
	}

	bus := channel.NewBus()
	uFeed, _ := bus.Join("verifier")
	vFeed, _ := bus.Join("registrant")

	responder, err := NewResponder(VerifierCfg{
		AuthorityKey: authorityKey,
		GroupKey:     testGroupKey,
		Payload:      []byte("secret-42"),
		Ephemeral:    suite.ScalarFromUint64(9),
	})
	if nil != err {
		t.Fatalf("failed creating Responder, got error %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- responder.Run(ctx, uFeed)
	}()

	state, err := NewRegistrantState(RegistrantCfg{
		Cred:     cred,
		GroupKey: testGroupKey,
		Payload:  []byte("secret-42"),
		Blinding: suite.ScalarFromUint64(2),
	})
	if nil != err {
		t.Fatalf("failed creating RegistrantState, got error %v", err)
	}
	err = protocols.Run(ctx, state, SessionTransport(vFeed, state))
	if nil != err {
		t.Fatalf("failed registrant Run, got error %v", err)
	}
	bus.Close()
	<-done

	// session private scalar is (pt + id*r)*rv = 44, the shared point is
	// therefore 44*9*P on both sides
	ephemKey, err := suite.ScalarBaseMul(suite.ScalarFromUint64(9))
	if nil != err {
		t.Fatalf("failed ephemeral point computation, got error %v", err)
	}
	wantKey, err := suite.DeriveAgreementKey(suite.ScalarFromUint64(44), ephemKey)
	if nil != err {
		t.Fatalf("failed expected key derivation, got error %v", err)
	}
	if !slices.Equal(wantKey, state.SessionKey()) {
		t.Fatal("failed fixed vector control, session key differs")
	}
}

func TestPairingConcurrentSessions(t *testing.T) {
	ctx := context.Background()

	const numRegistrant = 3

	// all registrants share one authority
	ta, err := authority.New(authority.Cfg{ProvisionKey: make([]byte, suite.KeySize)})
	if nil != err {
		t.Fatalf("failed creating Authority, got error %v", err)
	}
	authorityKey := ta.PublicKey()

	bus := channel.NewBus()
	uFeed, err := bus.Join("verifier")
	if nil != err {
		t.Fatalf("failed joining verifier, got error %v", err)
	}

	uMilestones := NewMilestones()
	responder, err := NewResponder(VerifierCfg{
		AuthorityKey: authorityKey,
		GroupKey:     testGroupKey,
		Payload:      testPayload,
		Milestones:   uMilestones,
	})
	if nil != err {
		t.Fatalf("failed creating Responder, got error %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- responder.Run(ctx, uFeed)
	}()

	states := make([]*RegistrantState, numRegistrant)
	errs := make([]error, numRegistrant)
	finished := make(chan int, numRegistrant)
	for i := range numRegistrant {
		id := cert.Identity(suite.ScalarFromUint64(uint64(100 + i)))
		grant, err := ta.Register(ctx, id)
		if nil != err {
			t.Fatalf("failed Register #%d, got error %v", i, err)
		}
		cred := vehicle.Credential{
			Identity:     id,
			Cert:         grant.Cert,
			CertScalar:   grant.CertScalar,
			AuthorityKey: authorityKey,
			CreatedAt:    time.Now(),
		}
		feed, err := bus.Join(string(rune('a' + i)))
		if nil != err {
			t.Fatalf("failed joining registrant #%d, got error %v", i, err)
		}
		states[i], err = NewRegistrantState(RegistrantCfg{Cred: cred, GroupKey: testGroupKey, Payload: testPayload})
		if nil != err {
			t.Fatalf("failed creating RegistrantState #%d, got error %v", i, err)
		}
		go func() {
			errs[i] = protocols.Run(ctx, states[i], SessionTransport(feed, states[i]))
			finished <- i
		}()
	}
	for range numRegistrant {
		<-finished
	}
	bus.Close()
	err = <-done
	if nil != err {
		t.Fatalf("failed responder Run, got error %v", err)
	}

	keys := make(map[string]bool)
	for i := range numRegistrant {
		if nil != errs[i] {
			t.Fatalf("failed registrant Run #%d, got error %v", i, errs[i])
		}
		uState, found := responder.Session(states[i].Tag())
		if !found {
			t.Fatalf("failed responder session lookup #%d", i)
		}
		key := states[i].SessionKey()
		if !slices.Equal(key, uState.SessionKey()) {
			t.Fatalf("failed key agreement control #%d", i)
		}
		keys[string(key)] = true
	}
	// sessions never share a key
	if numRegistrant != len(keys) {
		t.Fatalf("failed key freshness control, got %d distinct keys", len(keys))
	}

	started, completed := uMilestones.Counts()
	if numRegistrant != started || numRegistrant != completed {
		t.Fatalf("failed milestone control, got %d started, %d completed", started, completed)
	}
}

func TestVerifierRejectsForgedCert(t *testing.T) {
	ctx := context.Background()

	cred, _ := newTestCredential(t, 77)
	_, foreignKey := newTestCredential(t, 78)

	milestones := NewMilestones()
	state, err := NewVerifierState(VerifierCfg{
		AuthorityKey: foreignKey, // expects certificates from another authority
		GroupKey:     testGroupKey,
		Payload:      testPayload,
		Milestones:   milestones,
	})
	if nil != err {
		t.Fatalf("failed creating VerifierState, got error %v", err)
	}

	pairKey, err := suite.SymEncrypt(cred.Cert.Ai, testGroupKey)
	if nil != err {
		t.Fatalf("failed sealing pairing point, got error %v", err)
	}
	hello := HelloMsg{
		Kind:     kindHello,
		Tag:      tagFacto.New(),
		Identity: cred.Identity,
		Cert:     cred.Cert,
		PairKey:  pairKey,
	}
	frame, err := cborSrz.Marshal(hello)
	if nil != err {
		t.Fatalf("failed marshalling HelloMsg, got error %v", err)
	}

	_, rmsg, err := VerifierHello(ctx, state, frame)
	if !errors.Is(err, cert.ErrVerify) {
		t.Fatalf("failed verification control, got error %v", err)
	}
	// nothing is sent and no milestone is recorded
	if nil != rmsg {
		t.Fatal("failed silence control, verifier answered a forged hello")
	}
	started, completed := milestones.Counts()
	if 0 != started || 0 != completed {
		t.Fatalf("failed milestone control, got %d started, %d completed", started, completed)
	}
}

func TestResponderIgnoresForgedHello(t *testing.T) {
	ctx := context.Background()

	cred, authorityKey := newTestCredential(t, 88)
	forged, _ := newTestCredential(t, 89) // issued by another authority

	bus := channel.NewBus()
	uFeed, _ := bus.Join("verifier")
	vFeed, _ := bus.Join("registrant")

	uMilestones := NewMilestones()
	responder, err := NewResponder(VerifierCfg{
		AuthorityKey: authorityKey,
		GroupKey:     testGroupKey,
		Payload:      testPayload,
		Milestones:   uMilestones,
	})
	if nil != err {
		t.Fatalf("failed creating Responder, got error %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- responder.Run(ctx, uFeed)
	}()

	// broadcast a forged hello first
	forgedPairKey, err := suite.SymEncrypt(forged.Cert.Ai, testGroupKey)
	if nil != err {
		t.Fatalf("failed sealing forged pairing point, got error %v", err)
	}
	forgedHello := HelloMsg{
		Kind:     kindHello,
		Tag:      tagFacto.New(),
		Identity: forged.Identity,
		Cert:     forged.Cert,
		PairKey:  forgedPairKey,
	}
	frame, err := cborSrz.Marshal(forgedHello)
	if nil != err {
		t.Fatalf("failed marshalling forged hello, got error %v", err)
	}
	err = vFeed.WriteBytes(frame)
	if nil != err {
		t.Fatalf("failed broadcasting forged hello, got error %v", err)
	}

	// a legitimate session still goes through
	state, err := NewRegistrantState(RegistrantCfg{Cred: cred, GroupKey: testGroupKey, Payload: testPayload})
	if nil != err {
		t.Fatalf("failed creating RegistrantState, got error %v", err)
	}
	err = protocols.Run(ctx, state, SessionTransport(vFeed, state))
	if nil != err {
		t.Fatalf("failed registrant Run, got error %v", err)
	}
	bus.Close()
	err = <-done
	if nil != err {
		t.Fatalf("failed responder Run, got error %v", err)
	}

	started, completed := uMilestones.Counts()
	if 1 != started || 1 != completed {
		t.Fatalf("failed milestone control, got %d started, %d completed", started, completed)
	}
	if 0 != uMilestones.Started(forgedHello.Tag) {
		t.Fatal("failed forged session control, forged hello was started")
	}
}

func TestResponderIgnoresReplayedHello(t *testing.T) {
	ctx := context.Background()

	cred, authorityKey := newTestCredential(t, 99)

	bus := channel.NewBus()
	uFeed, _ := bus.Join("verifier")
	vFeed, _ := bus.Join("registrant")

	// adversary duplicating every hello in transit
	bus.SetInterceptor(func(from string, frame []byte) [][]byte {
		env, err := PeekEnvelope(frame)
		if nil == err && kindHello == env.Kind {
			return [][]byte{frame, frame}
		}
		return [][]byte{frame}
	})

	uMilestones := NewMilestones()
	responder, err := NewResponder(VerifierCfg{
		AuthorityKey: authorityKey,
		GroupKey:     testGroupKey,
		Payload:      testPayload,
		Milestones:   uMilestones,
	})
	if nil != err {
		t.Fatalf("failed creating Responder, got error %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- responder.Run(ctx, uFeed)
	}()

	state, err := NewRegistrantState(RegistrantCfg{Cred: cred, GroupKey: testGroupKey, Payload: testPayload})
	if nil != err {
		t.Fatalf("failed creating RegistrantState, got error %v", err)
	}
	err = protocols.Run(ctx, state, SessionTransport(vFeed, state))
	if nil != err {
		t.Fatalf("failed registrant Run, got error %v", err)
	}
	bus.Close()
	err = <-done
	if nil != err {
		t.Fatalf("failed responder Run, got error %v", err)
	}

	// the replayed hello must not complete a second session
	if 1 != uMilestones.Started(state.Tag()) {
		t.Fatalf("failed replay control, session started %d times", uMilestones.Started(state.Tag()))
	}
	if 1 != uMilestones.Completed(state.Tag()) {
		t.Fatalf("failed replay control, session completed %d times", uMilestones.Completed(state.Tag()))
	}
}

func TestRegistrantRejectsTamperedPayload(t *testing.T) {
	ctx := context.Background()

	cred, authorityKey := newTestCredential(t, 111)

	bus := channel.NewBus()
	uFeed, _ := bus.Join("verifier")
	vFeed, _ := bus.Join("registrant")

	// adversary flipping a byte of every sealed payload in transit
	bus.SetInterceptor(func(from string, frame []byte) [][]byte {
		env, err := PeekEnvelope(frame)
		if nil == err && kindPayload == env.Kind {
			forged := make([]byte, len(frame))
			copy(forged, frame)
			forged[len(forged)-1] ^= 0xFF
			return [][]byte{forged}
		}
		return [][]byte{frame}
	})

	responder, err := NewResponder(VerifierCfg{AuthorityKey: authorityKey, GroupKey: testGroupKey, Payload: testPayload})
	if nil != err {
		t.Fatalf("failed creating Responder, got error %v", err)
	}
	go responder.Run(ctx, uFeed)
	defer bus.Close()

	state, err := NewRegistrantState(RegistrantCfg{Cred: cred, GroupKey: testGroupKey, Payload: testPayload})
	if nil != err {
		t.Fatalf("failed creating RegistrantState, got error %v", err)
	}
	err = protocols.Run(ctx, state, SessionTransport(vFeed, state))
	if !errors.Is(err, suite.ErrDecrypt) {
		t.Fatalf("failed tamper control, got error %v", err)
	}
	if nil != state.SessionKey() {
		t.Fatal("failed key disposal control, session key survived the failure")
	}
}

func TestRegistrantRejectsPayloadMismatch(t *testing.T) {
	ctx := context.Background()

	cred, authorityKey := newTestCredential(t, 112)

	bus := channel.NewBus()
	uFeed, _ := bus.Join("verifier")
	vFeed, _ := bus.Join("registrant")

	// verifier holding a different payload
	responder, err := NewResponder(VerifierCfg{AuthorityKey: authorityKey, GroupKey: testGroupKey, Payload: []byte("wrong-payload")})
	if nil != err {
		t.Fatalf("failed creating Responder, got error %v", err)
	}
	go responder.Run(ctx, uFeed)
	defer bus.Close()

	vMilestones := NewMilestones()
	state, err := NewRegistrantState(RegistrantCfg{Cred: cred, GroupKey: testGroupKey, Payload: testPayload, Milestones: vMilestones})
	if nil != err {
		t.Fatalf("failed creating RegistrantState, got error %v", err)
	}
	err = protocols.Run(ctx, state, SessionTransport(vFeed, state))
	if !errors.Is(err, ErrPayload) {
		t.Fatalf("failed mismatch control, got error %v", err)
	}
	if nil != state.SessionKey() {
		t.Fatal("failed key disposal control, session key survived the failure")
	}
	if 0 != vMilestones.Completed(state.Tag()) {
		t.Fatal("failed milestone control, failed session was completed")
	}
}

func TestBroadcastObserverSeesNoSecrets(t *testing.T) {
	ctx := context.Background()

	cred, authorityKey := newTestCredential(t, 123)

	bus := channel.NewBus()
	uFeed, _ := bus.Join("verifier")
	vFeed, _ := bus.Join("registrant")
	oFeed, _ := bus.Join("observer")

	// passive observer recording every broadcast frame
	frames := make(chan []byte, 16)
	go func() {
		defer close(frames)
		for {
			frame, err := oFeed.ReadBytes()
			if nil != err {
				return
			}
			frames <- frame
		}
	}()

	responder, err := NewResponder(VerifierCfg{AuthorityKey: authorityKey, GroupKey: testGroupKey, Payload: testPayload})
	if nil != err {
		t.Fatalf("failed creating Responder, got error %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- responder.Run(ctx, uFeed)
	}()

	state, err := NewRegistrantState(RegistrantCfg{Cred: cred, GroupKey: testGroupKey, Payload: testPayload})
	if nil != err {
		t.Fatalf("failed creating RegistrantState, got error %v", err)
	}
	err = protocols.Run(ctx, state, SessionTransport(vFeed, state))
	if nil != err {
		t.Fatalf("failed registrant Run, got error %v", err)
	}
	bus.Close()
	err = <-done
	if nil != err {
		t.Fatalf("failed responder Run, got error %v", err)
	}

	// no broadcast frame carries a secret in the clear
	secrets := map[string][]byte{
		"certificate scalar": cred.CertScalar,
		"session key":        state.SessionKey(),
		"payload":            testPayload,
	}
	numFrame := 0
	for frame := range frames {
		numFrame++
		for name, secret := range secrets {
			if bytes.Contains(frame, secret) {
				t.Fatalf("failed secrecy control, a frame leaks the %s", name)
			}
		}
	}
	if 3 != numFrame {
		t.Fatalf("failed observation control, got %d frames", numFrame)
	}
}

func TestMessageChecks(t *testing.T) {
	cred, _ := newTestCredential(t, 55)
	tag := tagFacto.New()

	sealed, err := suite.SymEncrypt(cred.Cert.Ai, testGroupKey)
	if nil != err {
		t.Fatalf("failed sealing point, got error %v", err)
	}

	hello := HelloMsg{Kind: kindHello, Tag: tag, Identity: cred.Identity, Cert: cred.Cert, PairKey: sealed}
	if err := hello.Check(); nil != err {
		t.Fatalf("failed HelloMsg Check, got error %v", err)
	}
	hello.Kind = kindResp
	if err := hello.Check(); nil == err {
		t.Fatal("failed HelloMsg Check control, wrong kind was accepted")
	}

	resp := RespMsg{Kind: kindResp, Tag: tag, EphemKey: sealed}
	if err := resp.Check(); nil != err {
		t.Fatalf("failed RespMsg Check, got error %v", err)
	}
	resp.EphemKey = nil
	if err := resp.Check(); nil == err {
		t.Fatal("failed RespMsg Check control, empty ephemeral key was accepted")
	}

	pm := PayloadMsg{Kind: kindPayload, Tag: tag, Sealed: []byte{0x01, 0x02}}
	if err := pm.Check(); nil != err {
		t.Fatalf("failed PayloadMsg Check, got error %v", err)
	}
	pm.Tag = session.Tag{}
	if err := pm.Check(); nil == err {
		t.Fatal("failed PayloadMsg Check control, nil tag was accepted")
	}
}
