package vehicle

import (
	"sync"
)

// MemCredStore is an in memory CredStore.
type MemCredStore struct {
	mut   sync.Mutex
	creds map[string]Credential
}

// NewMemCredStore returns an empty MemCredStore.
func NewMemCredStore() *MemCredStore {
	return &MemCredStore{creds: make(map[string]Credential)}
}

// SaveCredential registers cred, replacing any previous credential held for
// the same identity.
func (self *MemCredStore) SaveCredential(cred Credential) error {
	err := cred.Check()
	if nil != err {
		return wrapError(err, "invalid credential")
	}

	self.mut.Lock()
	defer self.mut.Unlock()

	self.creds[string(cred.Identity)] = cred

	return nil
}

// LoadCredential loads the credential held for identity into dst.
// It returns true if such a credential exists.
func (self *MemCredStore) LoadCredential(identity []byte, dst *Credential) (bool, error) {
	self.mut.Lock()
	defer self.mut.Unlock()

	cred, found := self.creds[string(identity)]
	if found {
		*dst = cred
	}

	return found, nil
}

// RemoveCredential removes the credential held for identity.
// It returns true if a credential was removed.
func (self *MemCredStore) RemoveCredential(identity []byte) (bool, error) {
	self.mut.Lock()
	defer self.mut.Unlock()

	_, found := self.creds[string(identity)]
	delete(self.creds, string(identity))

	return found, nil
}

var _ CredStore = &MemCredStore{}
