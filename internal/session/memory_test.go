package session

import (
	"testing"
	"time"
)

func TestMemStoreSetGet(t *testing.T) {
	store, err := NewMemStore[Tag, string](TagFactory{}, time.Minute)
	if nil != err {
		t.Fatalf("failed creating MemStore, got error %v", err)
	}

	tag := TagFactory{}.New()
	err = store.Set(tag, "pairing-state")
	if nil != err {
		t.Fatalf("failed Set, got error %v", err)
	}

	got, ok := store.Get(tag)
	if !ok {
		t.Fatal("failed Get, key not found")
	}
	if "pairing-state" != got {
		t.Fatalf("failed Get control, got %q", got)
	}

	// Get does not consume the entry
	_, ok = store.Get(tag)
	if !ok {
		t.Fatal("failed repeated Get, key not found")
	}
}

func TestMemStorePop(t *testing.T) {
	store, err := NewMemStore[Tag, int](TagFactory{}, time.Minute)
	if nil != err {
		t.Fatalf("failed creating MemStore, got error %v", err)
	}

	tag, err := store.Save(42)
	if nil != err {
		t.Fatalf("failed Save, got error %v", err)
	}

	got, ok := store.Pop(tag)
	if !ok || 42 != got {
		t.Fatalf("failed Pop, got %d, %v", got, ok)
	}

	_, ok = store.Pop(tag)
	if ok {
		t.Fatal("failed Pop control, entry still present")
	}
}

func TestMemStoreRejectsNilTag(t *testing.T) {
	store, err := NewMemStore[Tag, int](TagFactory{}, time.Minute)
	if nil != err {
		t.Fatalf("failed creating MemStore, got error %v", err)
	}

	var nilTag Tag
	err = store.Set(nilTag, 1)
	if nil == err {
		t.Fatal("failed Set control, nil tag was accepted")
	}

	_, ok := store.Get(nilTag)
	if ok {
		t.Fatal("failed Get control, nil tag was accepted")
	}
}

func TestMemStoreExpiry(t *testing.T) {
	store, err := NewMemStore[Tag, string](TagFactory{}, time.Minute)
	if nil != err {
		t.Fatalf("failed creating MemStore, got error %v", err)
	}

	now := time.Now()
	store.now = func() time.Time { return now }

	tag, err := store.Save("short-lived")
	if nil != err {
		t.Fatalf("failed Save, got error %v", err)
	}

	// move the clock past the entry deadline
	store.now = func() time.Time { return now.Add(2 * time.Minute) }

	_, ok := store.Get(tag)
	if ok {
		t.Fatal("failed expiry control, Get returned an expired entry")
	}

	// mutation sweeps leftovers
	_, err = store.Save("fresh")
	if nil != err {
		t.Fatalf("failed Save, got error %v", err)
	}
	if 1 != len(store.entries) {
		t.Fatalf("failed sweep control, got %d entries", len(store.entries))
	}
}

func TestNewMemStoreValidation(t *testing.T) {
	_, err := NewMemStore[Tag, int](nil, time.Minute)
	if nil == err {
		t.Fatal("failed NewMemStore control, nil KeyFactory was accepted")
	}

	_, err = NewMemStore[Tag, int](TagFactory{}, 0)
	if nil == err {
		t.Fatal("failed NewMemStore control, zero ttl was accepted")
	}
}
