package order

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

	o := storedOrder("ord_pg1", now)
	o.Buyer = buyerAddr
	o.TxID = "TX1"
	o.ReleaseTxID = "RELTX1"
	o.ImageURL = "https://example.com/widget.png"
	o.BuyerName = "Pat"
	o.BuyerEmail = "pat@example.com"
	o.BuyerShipping = "1 Main St"

	if err := s.Create(ctx, o); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Get(ctx, "ord_pg1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Seller != o.Seller || got.Buyer != o.Buyer || got.Amount != o.Amount ||
		got.AppID != o.AppID || got.TxID != "TX1" || got.ReleaseTxID != "RELTX1" ||
		got.BuyerShipping != "1 Main St" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(o.CreatedAt) {
		t.Fatalf("createdAt mismatch: %v vs %v", got.CreatedAt, o.CreatedAt)
	}

	if _, err := s.Get(ctx, "ord_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPostgresStore_UpdateAndNulls(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	s := NewPostgresStore(db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	// Optional fields start NULL and must come back empty.
	o := storedOrder("ord_pg2", now)
	if err := s.Create(ctx, o); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "ord_pg2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Buyer != "" || got.TxID != "" || got.ReleaseTxID != "" || got.BuyerEmail != "" {
		t.Fatalf("NULL columns not empty: %+v", got)
	}

	got.Buyer = buyerAddr
	got.Status = StatusFunded
	got.TxID = "TX9"
	got.UpdatedAt = now.Add(time.Second)
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	after, _ := s.Get(ctx, "ord_pg2")
	if after.Status != StatusFunded || after.TxID != "TX9" || after.Buyer != buyerAddr {
		t.Fatalf("update lost: %+v", after)
	}

	missing := storedOrder("ord_missing", now)
	if err := s.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound on update, got %v", err)
	}
}

func TestPostgresStore_ListAndCount(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	s := NewPostgresStore(db)
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i, id := range []string{"ord_l1", "ord_l2", "ord_l3"} {
		o := storedOrder(id, base.Add(time.Duration(i)*time.Minute))
		if id == "ord_l3" {
			o.Status = StatusFunded
			o.Buyer = buyerAddr
		}
		if err := s.Create(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.List(ctx, ListFilter{}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "ord_l3" {
		t.Fatalf("wrong ordering or count: %+v", all)
	}

	page, err := s.List(ctx, ListFilter{}, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != "ord_l2" {
		t.Fatalf("wrong page: %+v", page)
	}

	funded, err := s.List(ctx, ListFilter{Status: StatusFunded}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(funded) != 1 || funded[0].ID != "ord_l3" {
		t.Fatalf("status filter wrong: %+v", funded)
	}

	byBuyer, err := s.List(ctx, ListFilter{Wallet: buyerAddr, Status: StatusFunded}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(byBuyer) != 1 {
		t.Fatalf("combined filter wrong: %+v", byBuyer)
	}

	n, err := s.Count(ctx, ListFilter{Wallet: sellerAddr})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("want count 3, got %d", n)
	}
}
