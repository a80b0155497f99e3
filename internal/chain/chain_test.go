package chain

import (
	"context"
	"errors"
	"testing"

	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
)

func TestAppEscrowAddress(t *testing.T) {
	addr := AppEscrowAddress(1234)
	if addr == "" {
		t.Fatal("empty address")
	}
	if _, err := sdktypes.DecodeAddress(addr); err != nil {
		t.Fatalf("derived address does not decode: %v", err)
	}
	if again := AppEscrowAddress(1234); again != addr {
		t.Errorf("derivation not deterministic: %s vs %s", addr, again)
	}
	if other := AppEscrowAddress(1235); other == addr {
		t.Error("distinct app IDs produced the same address")
	}
}

func TestFakeLifecycle(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	if _, err := f.TransactionStatus(ctx, "UNKNOWN"); !errors.Is(err, ErrTxNotFound) {
		t.Fatalf("want ErrTxNotFound, got %v", err)
	}

	f.SetPending("TX1")
	st, err := f.TransactionStatus(ctx, "TX1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Confirmed || st.PoolError != "" {
		t.Fatalf("want pending, got %+v", st)
	}

	f.Confirm("TX1", 42)
	st, err = f.TransactionStatus(ctx, "TX1")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Confirmed || st.Round != 42 {
		t.Fatalf("want confirmed at round 42, got %+v", st)
	}

	f.Reject("TX2", "overspend")
	st, err = f.TransactionStatus(ctx, "TX2")
	if err != nil {
		t.Fatal(err)
	}
	if st.Confirmed || st.PoolError != "overspend" {
		t.Fatalf("want rejected, got %+v", st)
	}
}

func TestFakeSubmitConfirmsImmediately(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	txID, err := f.SubmitTransaction(ctx, []byte("signed"))
	if err != nil {
		t.Fatal(err)
	}
	st, err := f.WaitForConfirmation(ctx, txID, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Confirmed {
		t.Fatalf("submitted tx not confirmed: %+v", st)
	}
}

func TestFakeRelease(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	txID, err := f.Release(ctx, 99, "SELLER")
	if err != nil {
		t.Fatal(err)
	}
	st, err := f.TransactionStatus(ctx, txID)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Confirmed {
		t.Fatalf("release tx not confirmed: %+v", st)
	}
	calls := f.Released()
	if len(calls) != 1 || calls[0].AppID != 99 || calls[0].Seller != "SELLER" {
		t.Fatalf("unexpected release calls: %+v", calls)
	}

	f.FailRelease(errors.New("node down"))
	if _, err := f.Release(ctx, 99, "SELLER"); err == nil {
		t.Fatal("want release error")
	}
}
