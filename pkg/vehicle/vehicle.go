package vehicle

import (
	"context"
	"time"

	"code.roadauth.org/golang/internal/observability"
	"code.roadauth.org/golang/internal/transport"
	"code.roadauth.org/golang/pkg/authority"
	"code.roadauth.org/golang/pkg/cert"
)

// Register obtains a certificate for id from the authority reachable over tr
// and persists the resulting credential in store.
//
// The issued certificate is verified against authorityKey before anything is
// stored, a grant that does not verify is discarded.
func Register(ctx context.Context, tr transport.Transport, provisionKey []byte, id cert.Identity, authorityKey []byte, store CredStore) (Credential, error) {
	var cred Credential

	log := observability.GetObservability(ctx).Log().With("role", "vehicle")

	grant, err := authority.Request(ctx, tr, provisionKey, id)
	if nil != err {
		return cred, wrapError(err, "failed registration exchange")
	}

	err = cert.Verify(grant.Cert, id, authorityKey)
	if nil != err {
		log.Debug("discarding grant", "error", err)
		return cred, wrapError(err, "issued certificate does not verify")
	}

	cred = Credential{
		Identity:     id,
		Cert:         grant.Cert,
		CertScalar:   grant.CertScalar,
		AuthorityKey: authorityKey,
		CreatedAt:    time.Now(),
	}
	err = store.SaveCredential(cred)
	if nil != err {
		return cred, wrapError(err, "failed saving credential")
	}
	log.Debug("credential stored")

	return cred, nil
}
