package pgdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"code.roadauth.org/golang/pkg/authority"
)

const testDSN = "host=localhost port=25432 database=radb user=postgres password=notasecret sslmode=disable search_path=roadauth_test,public"

var dbInitError error

func init() {
	pgconn, err := pgx.Connect(context.Background(), testDSN)
	if nil == err {
		err = JournalMigrate(pgconn, "roadauth_test")
	}
	dbInitError = err
}

// newJournal returns a Journal bound to a transaction that is rolled back at
// test end. Tests are skipped when no database is reachable on testDSN.
func newJournal(ctx context.Context, t *testing.T) *Journal {
	if nil != dbInitError {
		t.Skipf("skipping, no test database, got error %v", dbInitError)
	}
	pgconn, err := pgx.Connect(ctx, testDSN)
	if nil != err {
		t.Skipf("skipping, failed pgx.Connect, got error %v", err)
	}

	tx, err := pgconn.Begin(ctx)
	if nil != err {
		t.Fatalf("failed starting transaction, got error %v", err)
	}
	_, err = tx.Exec(ctx, "DELETE FROM issuance")
	if nil != err {
		t.Fatalf("failed clearing issuance table, got error %v", err)
	}
	t.Cleanup(func() {
		err := tx.Rollback(ctx)
		if nil != err {
			t.Logf("failed rolling back test transaction, got error %v", err)
		}
	})

	return &Journal{DB: tx}
}

func newEntry(tag byte) authority.JournalEntry {
	id := make([]byte, 32)
	ai := make([]byte, 32)
	ar := make([]byte, 32)
	id[0] = tag
	ai[0] = tag + 1
	ar[0] = tag + 2

	return authority.JournalEntry{Identity: id, Ai: ai, Ar: ar, IssuedAt: time.Now()}
}

func TestJournalRecordLookup(t *testing.T) {
	ctx := context.Background() // t.Context() gets in the way when controlling transaction
	journal := newJournal(ctx, t)

	entry := newEntry(0x11)
	err := journal.Record(ctx, entry)
	if nil != err {
		t.Fatalf("failed Record, got error %v", err)
	}

	got, found, err := journal.Lookup(ctx, entry.Identity)
	if nil != err {
		t.Fatalf("failed Lookup, got error %v", err)
	}
	if !found {
		t.Fatal("failed Lookup, entry not found")
	}
	if string(got.Ai) != string(entry.Ai) || string(got.Ar) != string(entry.Ar) {
		t.Fatal("failed Lookup control, points do not match")
	}
}

func TestJournalRecordDuplicate(t *testing.T) {
	ctx := context.Background()
	journal := newJournal(ctx, t)

	entry := newEntry(0x22)
	err := journal.Record(ctx, entry)
	if nil != err {
		t.Fatalf("failed Record, got error %v", err)
	}

	err = journal.Record(ctx, entry)
	if !errors.Is(err, authority.ErrDuplicate) {
		t.Fatalf("failed duplicate control, got error %v", err)
	}
}

func TestJournalLookupMissing(t *testing.T) {
	ctx := context.Background()
	journal := newJournal(ctx, t)

	_, found, err := journal.Lookup(ctx, []byte("missing"))
	if nil != err {
		t.Fatalf("failed Lookup, got error %v", err)
	}
	if found {
		t.Fatal("failed Lookup control, missing entry was found")
	}
}

func TestJournalCount(t *testing.T) {
	ctx := context.Background()
	journal := newJournal(ctx, t)

	for i := range 3 {
		err := journal.Record(ctx, newEntry(byte(0x30+i)))
		if nil != err {
			t.Fatalf("failed Record #%d, got error %v", i, err)
		}
	}

	count, err := journal.Count(ctx)
	if nil != err {
		t.Fatalf("failed Count, got error %v", err)
	}
	if 3 != count {
		t.Fatalf("failed count control, got %d", count)
	}
}
