package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

var (
	errExists      = errors.New("exists")
	errInvalid     = errors.New("invalid")
	errRateLimited = errors.New("rate limited")
	errBadCreds    = errors.New("bad credentials")
	errLocked      = errors.New("locked")
	errSession     = errors.New("session invalid")
)

type accountHarness struct {
	records  map[string]AccountRecord
	failures map[string]int
	limitErr error
	dummies  int
	nextID   int
}

func newAccountHarness() *accountHarness {
	return &accountHarness{
		records:  map[string]AccountRecord{},
		failures: map[string]int{},
	}
}

func (h *accountHarness) accountDeps() AccountDeps {
	return AccountDeps{
		Now:       func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
		NewUserID: func() string {
			h.nextID++
			return fmt.Sprintf("u%d", h.nextID)
		},
		EnforceRegistrationLimiter: func(context.Context, string) error {
			return h.limitErr
		},
		MapLimiterError: func(err error) error { return err },
		HashSecret: func(s string) (string, error) {
			return "hash:" + s, nil
		},
		CreateCredential: func(_ context.Context, r AccountRecord) error {
			if _, ok := h.records[r.Identifier]; ok {
				return errExists
			}
			h.records[r.Identifier] = r
			return nil
		},
		IsDuplicate: func(err error) bool { return errors.Is(err, errExists) },
		Errors: AccountErrors{
			EngineNotReady:          errNotReady,
			RegistrationInvalid:     errInvalid,
			RegistrationRateLimited: errRateLimited,
			RegistrationUnavailable: errUnavailable,
			PasswordPolicy:          errPolicy,
			CredentialExists:        errExists,
		},
	}
}

func (h *accountHarness) loginDeps() LoginDeps {
	return LoginDeps{
		CheckLockout: func(_ context.Context, id string) error {
			if h.failures[id] >= 3 {
				return errLocked
			}
			return nil
		},
		RecordFailure: func(_ context.Context, id string) error {
			h.failures[id]++
			return nil
		},
		ResetLockout: func(_ context.Context, id string) error {
			delete(h.failures, id)
			return nil
		},
		MapLockoutErr: func(err error) error { return err },
		FindCredential: func(_ context.Context, id string) (AccountRecord, error) {
			r, ok := h.records[id]
			if !ok {
				return AccountRecord{}, errNotFound
			}
			return r, nil
		},
		IsCredentialNotFound: func(err error) bool { return errors.Is(err, errNotFound) },
		VerifySecret: func(secret, hash string) (bool, error) {
			return "hash:"+secret == hash, nil
		},
		DummyVerify: func(string) { h.dummies++ },
		IssueSessionToken: func(_ context.Context, r AccountRecord) (string, error) {
			return "token-for-" + r.UserID, nil
		},
		Errors: LoginErrors{
			EngineNotReady:     errNotReady,
			InvalidCredentials: errBadCreds,
			LoginLocked:        errLocked,
			LoginUnavailable:   errUnavailable,
		},
	}
}

func TestRegisterNormalizesAndRejectsDuplicates(t *testing.T) {
	h := newAccountHarness()
	rec, err := RunRegister(context.Background(), AccountRegisterRequest{
		Identifier:  " A@X.com",
		DisplayName: "Alice",
		Secret:      "old",
	}, h.accountDeps())
	if err != nil {
		t.Fatalf("RunRegister failed: %v", err)
	}
	if rec.Identifier != "a@x.com" || rec.SecretHash != "hash:old" || rec.UserID == "" {
		t.Fatalf("unexpected record %+v", rec)
	}

	_, err = RunRegister(context.Background(), AccountRegisterRequest{Identifier: "a@x.com", Secret: "x"}, h.accountDeps())
	if !errors.Is(err, errExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newAccountHarness()
	if _, err := RunRegister(context.Background(), AccountRegisterRequest{Secret: "x"}, h.accountDeps()); !errors.Is(err, errInvalid) {
		t.Fatalf("expected invalid identifier, got %v", err)
	}
	if _, err := RunRegister(context.Background(), AccountRegisterRequest{Identifier: "a@x.com"}, h.accountDeps()); !errors.Is(err, errPolicy) {
		t.Fatalf("expected policy error, got %v", err)
	}

	h.limitErr = errRateLimited
	if _, err := RunRegister(context.Background(), AccountRegisterRequest{Identifier: "a@x.com", Secret: "x"}, h.accountDeps()); !errors.Is(err, errRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
}

func TestAuthenticateAndLockout(t *testing.T) {
	h := newAccountHarness()
	if _, err := RunRegister(context.Background(), AccountRegisterRequest{Identifier: "a@x.com", Secret: "old"}, h.accountDeps()); err != nil {
		t.Fatalf("RunRegister failed: %v", err)
	}

	token, err := RunAuthenticate(context.Background(), "A@x.com", "old", h.loginDeps())
	if err != nil {
		t.Fatalf("RunAuthenticate failed: %v", err)
	}
	if !strings.HasPrefix(token, "token-for-") {
		t.Fatalf("unexpected token %q", token)
	}

	if _, err := RunAuthenticate(context.Background(), "nobody@x.com", "old", h.loginDeps()); !errors.Is(err, errBadCreds) {
		t.Fatalf("expected invalid credentials for unknown identifier, got %v", err)
	}
	if h.dummies != 1 {
		t.Fatalf("expected dummy verification on unknown identifier, got %d", h.dummies)
	}

	for i := 0; i < 3; i++ {
		if _, err := RunAuthenticate(context.Background(), "a@x.com", "wrong", h.loginDeps()); !errors.Is(err, errBadCreds) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, err)
		}
	}
	if _, err := RunAuthenticate(context.Background(), "a@x.com", "old", h.loginDeps()); !errors.Is(err, errLocked) {
		t.Fatalf("expected lockout, got %v", err)
	}
}

func TestValidateSessionRejectsTokensOlderThanSecret(t *testing.T) {
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	record := AccountRecord{UserID: "u1", Identifier: "a@x.com", UpdatedAt: issued.Add(-time.Hour)}

	deps := SessionDeps{
		ParseToken: func(tok string) (SessionClaims, error) {
			if tok != "good" {
				return SessionClaims{}, errors.New("bad signature")
			}
			return SessionClaims{UserID: "u1", Identifier: "a@x.com", IssuedAt: issued}, nil
		},
		FindCredential: func(context.Context, string) (AccountRecord, error) {
			return record, nil
		},
		Errors: SessionErrors{EngineNotReady: errNotReady, SessionInvalid: errSession, SessionUnavailable: errUnavailable},
	}

	claims, err := RunValidateSession(context.Background(), "good", deps)
	if err != nil || claims.UserID != "u1" {
		t.Fatalf("expected valid session, claims=%+v err=%v", claims, err)
	}
	if _, err := RunValidateSession(context.Background(), "forged", deps); !errors.Is(err, errSession) {
		t.Fatalf("expected invalid session, got %v", err)
	}

	record.UpdatedAt = issued.Add(time.Minute)
	if _, err := RunValidateSession(context.Background(), "good", deps); !errors.Is(err, errSession) {
		t.Fatalf("expected session revoked by secret change, got %v", err)
	}
}
