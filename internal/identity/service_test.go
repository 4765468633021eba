package identity

import (
	"context"
	"testing"
)

func TestRegisterRider(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	account, err := svc.Register(context.Background(), Credentials{
		Name:     " Ada ",
		Email:    " Ada@Example.com ",
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if account.Role != RoleRider {
		t.Fatalf("expected default rider role, got %s", account.Role)
	}
	if account.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %s", account.Email)
	}
	if account.Name != "Ada" {
		t.Fatalf("name not trimmed: %q", account.Name)
	}
	if account.QRToken == "" {
		t.Fatal("expected a QR token on registration")
	}
	if string(account.PasswordHash) == "secret1" {
		t.Fatal("password stored in clear")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	cases := []struct {
		name  string
		creds Credentials
	}{
		{"missing email", Credentials{Password: "secret1"}},
		{"short password", Credentials{Email: "a@example.com", Password: "123"}},
		{"unknown role", Credentials{Email: "a@example.com", Password: "secret1", Role: "admin"}},
		{"driver without license", Credentials{Email: "a@example.com", Password: "secret1", Role: RoleDriver}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tc.creds); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	creds := Credentials{Email: "dup@example.com", Password: "secret1"}
	if _, err := svc.Register(ctx, creds); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, creds); err == nil {
		t.Fatal("expected duplicate email rejection")
	}
}

func TestRegisterDriver(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	account, err := svc.Register(context.Background(), Credentials{
		Name:          "D Driver",
		Email:         "driver@example.com",
		Password:      "secret1",
		Role:          RoleDriver,
		LicenseNumber: "CG-12345",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if account.Role != RoleDriver || account.LicenseNumber != "CG-12345" {
		t.Fatalf("driver fields missing: %+v", account)
	}
}

func TestAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	registered, err := svc.Register(ctx, Credentials{Email: "ada@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	account, err := svc.Authenticate(ctx, Credentials{Email: "ADA@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if account.ID != registered.ID {
		t.Fatalf("wrong account: %s", account.ID)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "wrong"}); err == nil {
		t.Fatal("expected bad password rejection")
	}
	if _, err := svc.Authenticate(ctx, Credentials{Email: "nobody@example.com", Password: "secret1"}); err == nil {
		t.Fatal("expected unknown email rejection")
	}
}
