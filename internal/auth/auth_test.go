package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"treasura.org/internal/session"
)

func setSecret(t *testing.T) {
	t.Helper()
	t.Setenv(secretEnvVariable, "unit-test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
}

func TestTokenRoundTrip(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken(42, "Checker", "CHK", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	userID, err := claims.UserID()
	if err != nil {
		t.Fatalf("user id: %v", err)
	}
	if userID != 42 || claims.Role != "Checker" || claims.RoleCode != "CHK" {
		t.Fatalf("unexpected claims: id=%d role=%q code=%q", userID, claims.Role, claims.RoleCode)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken(1, "Maker", "MKR", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseAndValidate(token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseAndValidate(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	t.Setenv(secretEnvVariable, "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken(1, "Maker", "MKR", time.Minute); err == nil {
		t.Fatal("expected error without configured secret")
	}
}

type stubLoginStore struct {
	rec LoginRecord
	err error
}

func (s *stubLoginStore) FindByEmail(ctx context.Context, email string) (LoginRecord, error) {
	if s.err != nil {
		return LoginRecord{}, s.err
	}
	return s.rec, nil
}

func TestLoginVerifiesPasswordAndUpsertsSession(t *testing.T) {
	setSecret(t)

	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := &stubLoginStore{rec: LoginRecord{
		UserID:       7,
		EmployeeName: "Ada",
		Email:        "ada@co",
		PasswordHash: hash,
		RoleName:     "Maker",
		RoleCode:     "MKR",
	}}
	sessions := session.NewDirectory()
	svc, err := NewService(store, sessions)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.Login(context.Background(), "ADA@co", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a token on successful login")
	}
	rec, ok := sessions.Get(7)
	if !ok || !rec.IsLoggedIn || rec.Role != "Maker" {
		t.Fatalf("expected upserted session, got %+v ok=%v", rec, ok)
	}

	if _, err := svc.Login(context.Background(), "ada@co", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on bad password, got %v", err)
	}
}

func TestLoginUnknownUserIsUnauthorized(t *testing.T) {
	setSecret(t)

	store := &stubLoginStore{err: errors.New("no rows")}
	svc, err := NewService(store, session.NewDirectory())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Login(context.Background(), "ghost@co", "pw"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	setSecret(t)

	sessions := session.NewDirectory()
	sessions.Add(session.Record{UserID: 1, IsLoggedIn: true})
	sessions.Add(session.Record{UserID: 2, IsLoggedIn: true})

	svc, err := NewService(&stubLoginStore{}, sessions)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	remaining, err := svc.Logout(context.Background(), 1)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected 1 remaining session, got %d", remaining)
	}
	if _, ok := sessions.Get(1); ok {
		t.Fatal("session should be cleared")
	}
}

func TestCallerContextRoundTrip(t *testing.T) {
	ctx := ContextWithCaller(context.Background(), Caller{UserID: 5, Role: "Checker", RoleCode: "CHK"})
	caller, ok := CallerFromContext(ctx)
	if !ok || caller.UserID != 5 {
		t.Fatalf("expected caller 5, got %+v ok=%v", caller, ok)
	}
	if !HasRole(ctx, "checker") || !HasRole(ctx, "chk") {
		t.Fatal("role match should ignore case and accept rolecode")
	}
	if _, ok := CallerFromContext(context.Background()); ok {
		t.Fatal("empty context must not yield a caller")
	}
}
