// Package boltdb provides a persistent vehicle.CredStore that keeps data in a file.
package boltdb

import (
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"code.roadauth.org/golang/pkg/vehicle"
)

const (
	connectTimeout = 5 * time.Second
	credBucket     = "credentialTbl"
)

type credStore struct {
	dbpath string
}

// New returns a CredStore implementation that persists credentials in a
// single file boltdb database.
// It errors if the database schema can not be created.
func New(dbpath string) (vehicle.CredStore, error) {
	store := credStore{dbpath: dbpath}

	db, err := bolt.Open(dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return nil, wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(credBucket))
		return wrapError(err, "failed %s bucket creation", credBucket) // nil if err is nil
	})
	if nil != err {
		return nil, wrapError(err, "failed db initialization")
	}

	return store, nil
}

// SaveCredential saves cred, replacing any previous credential held for the
// same identity.
// It errors if cred is invalid or could not be persisted.
func (self credStore) SaveCredential(cred vehicle.Credential) error {
	err := cred.Check()
	if nil != err {
		return wrapError(err, "invalid credential")
	}

	srzcred, err := cbor.Marshal(cred)
	if nil != err {
		return wrapError(err, "failed cbor.Marshal(cred)")
	}

	db, err := bolt.Open(self.dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(credBucket))
		if nil == bucket {
			return newError("missing %s bucket", credBucket)
		}
		return bucket.Put([]byte(cred.Identity), srzcred)
	})

	return wrapError(err, "failed storing credential") // nil if err is nil
}

// LoadCredential loads the credential held for identity into dst.
// It returns true if such a credential exists.
func (self credStore) LoadCredential(identity []byte, dst *vehicle.Credential) (bool, error) {
	db, err := bolt.Open(self.dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return false, wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	var found bool
	err = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(credBucket))
		if nil == bucket {
			return newError("missing %s bucket", credBucket)
		}
		srzcred := bucket.Get(identity)
		if nil == srzcred {
			return nil
		}
		err := cbor.Unmarshal(srzcred, dst)
		if nil != err {
			return wrapError(err, "failed cbor.Unmarshal(cred)")
		}
		found = true
		return nil
	})
	if nil != err {
		return false, wrapError(err, "failed loading credential")
	}

	return found, nil
}

// RemoveCredential removes the credential held for identity.
// It returns true if a credential was removed.
func (self credStore) RemoveCredential(identity []byte) (bool, error) {
	db, err := bolt.Open(self.dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return false, wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	var found bool
	err = db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(credBucket))
		if nil == bucket {
			return newError("missing %s bucket", credBucket)
		}
		if nil != bucket.Get(identity) {
			found = true
		}
		return bucket.Delete(identity)
	})
	if nil != err {
		return false, wrapError(err, "failed removing credential")
	}

	return found, nil
}

var _ vehicle.CredStore = credStore{}
