package blocklist

import (
	"context"
	"errors"
	"testing"

	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/algocart/escrowd/internal/validation"
)

func testAddr(fill byte) string {
	var a sdktypes.Address
	for i := range a {
		a[i] = fill
	}
	return a.String()
}

func TestBlockUnblock(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	wallet := testAddr(0x10)

	blocked, err := svc.IsBlocked(ctx, wallet)
	if err != nil {
		t.Fatal(err)
	}
	if blocked {
		t.Fatal("fresh wallet reported blocked")
	}

	u, err := svc.Block(ctx, wallet, "chargeback fraud", "ops")
	if err != nil {
		t.Fatalf("Block failed: %v", err)
	}
	if u.WalletAddress != wallet || u.Reason != "chargeback fraud" || u.BlockedBy != "ops" {
		t.Fatalf("unexpected entry: %+v", u)
	}

	blocked, err = svc.IsBlocked(ctx, wallet)
	if err != nil {
		t.Fatal(err)
	}
	if !blocked {
		t.Fatal("blocked wallet reported clear")
	}

	// Double block is rejected.
	if _, err := svc.Block(ctx, wallet, "again", "ops"); !errors.Is(err, ErrAlreadyBlocked) {
		t.Fatalf("want ErrAlreadyBlocked, got %v", err)
	}

	if err := svc.Unblock(ctx, wallet); err != nil {
		t.Fatalf("Unblock failed: %v", err)
	}
	blocked, _ = svc.IsBlocked(ctx, wallet)
	if blocked {
		t.Fatal("unblocked wallet still blocked")
	}

	if err := svc.Unblock(ctx, wallet); !errors.Is(err, ErrNotBlocked) {
		t.Fatalf("want ErrNotBlocked, got %v", err)
	}
}

func TestBlock_Validation(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	var verrs validation.ValidationErrors
	if _, err := svc.Block(ctx, "", "r", "ops"); !errors.As(err, &verrs) {
		t.Fatalf("want validation error for empty wallet, got %v", err)
	}
	if _, err := svc.Block(ctx, "not-an-address", "r", "ops"); !errors.As(err, &verrs) {
		t.Fatalf("want validation error for malformed wallet, got %v", err)
	}
}

func TestList_Paging(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	for i := byte(1); i <= 5; i++ {
		if _, err := svc.Block(ctx, testAddr(i), "", "ops"); err != nil {
			t.Fatal(err)
		}
	}

	page, total, err := svc.List(ctx, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(page) != 2 {
		t.Fatalf("want total 5 page 2, got %d/%d", total, len(page))
	}

	rest, total, err := svc.List(ctx, 10, 4)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(rest) != 1 {
		t.Fatalf("want 1 remaining, got %d", len(rest))
	}

	empty, total, err := svc.List(ctx, 10, 50)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(empty) != 0 {
		t.Fatalf("offset past end returned %d rows", len(empty))
	}
}

func TestMemoryStore_CopySemantics(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	wallet := testAddr(0x20)

	svc := NewService(s)
	if _, err := svc.Block(ctx, wallet, "reason", "ops"); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, wallet)
	if err != nil {
		t.Fatal(err)
	}
	got.Reason = "mutated"

	again, _ := s.Get(ctx, wallet)
	if again.Reason != "reason" {
		t.Fatal("store handed out a shared pointer")
	}
}
