package wallet

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestProvisionAndGet(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	accountID := uuid.NewString()

	w, err := svc.Provision(ctx, accountID)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if !w.Balance.IsZero() || w.Version != 0 {
		t.Fatalf("expected empty wallet, got %+v", w)
	}

	got, err := svc.Get(ctx, accountID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AccountID != accountID {
		t.Fatalf("unexpected wallet: %+v", got)
	}
}

func TestProvisionRejectsBadAccountID(t *testing.T) {
	svc := NewService(NewMemoryStore())
	if _, err := svc.Provision(context.Background(), "not-a-uuid"); err == nil {
		t.Fatal("expected error for malformed account id")
	}
}

func TestAddPaymentMethodMasksCard(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	accountID := uuid.NewString()
	if _, err := svc.Provision(ctx, accountID); err != nil {
		t.Fatalf("provision: %v", err)
	}

	method, err := svc.AddPaymentMethod(ctx, accountID, AddPaymentMethodInput{
		CardHolder: " A Rider ",
		CardNumber: "4242 4242 4242 4242",
		Expiry:     "12/27",
	})
	if err != nil {
		t.Fatalf("add method: %v", err)
	}
	if !strings.HasSuffix(method.CardNumber, "4242") {
		t.Fatalf("last four digits not kept: %s", method.CardNumber)
	}
	if strings.Contains(method.CardNumber, "4242424242424242") {
		t.Fatalf("full card number stored: %s", method.CardNumber)
	}
	if strings.Count(method.CardNumber, "*") != 12 {
		t.Fatalf("unexpected mask: %s", method.CardNumber)
	}
	if method.CardHolder != "A Rider" {
		t.Fatalf("card holder not trimmed: %q", method.CardHolder)
	}

	ok, err := svc.HasPaymentMethod(ctx, accountID, method.ID)
	if err != nil || !ok {
		t.Fatalf("expected method on wallet, got ok=%v err=%v", ok, err)
	}
}

func TestAddPaymentMethodValidation(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	accountID := uuid.NewString()
	if _, err := svc.Provision(ctx, accountID); err != nil {
		t.Fatalf("provision: %v", err)
	}

	cases := []struct {
		name  string
		input AddPaymentMethodInput
	}{
		{"too short", AddPaymentMethodInput{CardHolder: "A", CardNumber: "4242", Expiry: "12/27"}},
		{"too long", AddPaymentMethodInput{CardHolder: "A", CardNumber: strings.Repeat("4", 20), Expiry: "12/27"}},
		{"non numeric", AddPaymentMethodInput{CardHolder: "A", CardNumber: "4242 4242 4242 424x", Expiry: "12/27"}},
		{"missing holder", AddPaymentMethodInput{CardHolder: "  ", CardNumber: "4242424242424242", Expiry: "12/27"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AddPaymentMethod(ctx, accountID, tc.input); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestHasPaymentMethodMiss(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	accountID := uuid.NewString()
	if _, err := svc.Provision(ctx, accountID); err != nil {
		t.Fatalf("provision: %v", err)
	}

	ok, err := svc.HasPaymentMethod(ctx, accountID, uuid.NewString())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected miss for unknown method id")
	}
}
