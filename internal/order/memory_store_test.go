package order

import (
	"context"
	"errors"
	"testing"
	"time"
)

func storedOrder(id string, created time.Time) *EscrowOrder {
	return &EscrowOrder{
		ID:                 id,
		Seller:             sellerAddr,
		Amount:             1_000_000,
		EscrowAddress:      testAddr(0xEE),
		AppID:              7,
		Status:             StatusInit,
		ProductName:        "Widget",
		ProductDescription: "A widget",
		CreatedAt:          created,
		UpdatedAt:          created,
	}
}

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	if _, err := s.Get(ctx, "ord_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := s.Update(ctx, storedOrder("ord_missing", now)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound on update, got %v", err)
	}

	o := storedOrder("ord_1", now)
	if err := s.Create(ctx, o); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "ord_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ProductName != "Widget" {
		t.Fatalf("round trip lost data: %+v", got)
	}

	// Mutating the returned copy must not touch the stored record.
	got.Status = StatusFunded
	again, _ := s.Get(ctx, "ord_1")
	if again.Status != StatusInit {
		t.Fatal("store handed out a shared pointer")
	}

	got.Status = StatusFunded
	got.TxID = "TX1"
	if err := s.Update(ctx, got); err != nil {
		t.Fatal(err)
	}
	updated, _ := s.Get(ctx, "ord_1")
	if updated.Status != StatusFunded || updated.TxID != "TX1" {
		t.Fatalf("update lost: %+v", updated)
	}
}

func TestMemoryStore_ListOrderingAndPaging(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now().UTC()

	// Insert out of order; List must return newest first.
	for i, id := range []string{"ord_b", "ord_a", "ord_c"} {
		o := storedOrder(id, base.Add(time.Duration(i)*time.Minute))
		if err := s.Create(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.List(ctx, ListFilter{}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "ord_c" || all[2].ID != "ord_b" {
		ids := []string{}
		for _, o := range all {
			ids = append(ids, o.ID)
		}
		t.Fatalf("wrong ordering: %v", ids)
	}

	page, err := s.List(ctx, ListFilter{}, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != "ord_a" {
		t.Fatalf("wrong page: %+v", page)
	}

	empty, err := s.List(ctx, ListFilter{}, 10, 99)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("offset past end returned %d rows", len(empty))
	}

	n, err := s.Count(ctx, ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("want count 3, got %d", n)
	}
}

func TestMemoryStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	a := storedOrder("ord_a", now)
	b := storedOrder("ord_b", now.Add(time.Second))
	b.Status = StatusFunded
	b.Buyer = buyerAddr
	for _, o := range []*EscrowOrder{a, b} {
		if err := s.Create(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	funded, err := s.List(ctx, ListFilter{Status: StatusFunded}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(funded) != 1 || funded[0].ID != "ord_b" {
		t.Fatalf("status filter wrong: %+v", funded)
	}

	byBuyer, err := s.List(ctx, ListFilter{Wallet: buyerAddr}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(byBuyer) != 1 || byBuyer[0].ID != "ord_b" {
		t.Fatalf("wallet filter wrong: %+v", byBuyer)
	}

	bySeller, err := s.List(ctx, ListFilter{Wallet: sellerAddr}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(bySeller) != 2 {
		t.Fatalf("seller matches both orders, got %d", len(bySeller))
	}
}
