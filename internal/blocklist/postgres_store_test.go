package blocklist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/algocart/escrowd/internal/testutil"
)

func TestPostgresStore_RoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	s := NewPostgresStore(db)
	now := time.Now().UTC().Truncate(time.Microsecond)
	wallet := testAddr(0x30)

	if _, err := s.Get(ctx, wallet); !errors.Is(err, ErrNotBlocked) {
		t.Fatalf("want ErrNotBlocked, got %v", err)
	}

	u := &BlockedUser{
		WalletAddress: wallet,
		Reason:        "spam listings",
		BlockedBy:     "ops",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Put(ctx, u); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, wallet)
	if err != nil {
		t.Fatal(err)
	}
	if got.Reason != "spam listings" || got.BlockedBy != "ops" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	// Upsert on the same wallet updates in place.
	u.Reason = "confirmed fraud"
	u.UpdatedAt = now.Add(time.Second)
	if err := s.Put(ctx, u); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(ctx, wallet)
	if got.Reason != "confirmed fraud" {
		t.Fatalf("upsert did not update: %+v", got)
	}

	if err := s.Delete(ctx, wallet); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, wallet); !errors.Is(err, ErrNotBlocked) {
		t.Fatalf("want ErrNotBlocked on second delete, got %v", err)
	}
}

func TestPostgresStore_List(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	s := NewPostgresStore(db)
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i := byte(1); i <= 3; i++ {
		u := &BlockedUser{
			WalletAddress: testAddr(i),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Put(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	page, total, err := s.List(ctx, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(page) != 2 {
		t.Fatalf("want total 3 page 2, got %d/%d", total, len(page))
	}
	// Newest first.
	if page[0].WalletAddress != testAddr(3) {
		t.Fatalf("wrong ordering: %s", page[0].WalletAddress)
	}
}
