package flows

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errNotReady    = errors.New("not ready")
	errUnavailable = errors.New("unavailable")
	errPolicy      = errors.New("policy")
	errNotFound    = errors.New("not found")
)

type resetHarness struct {
	credentials map[string]PasswordResetCredential
	codes       map[string]string
	allow       bool
	limiterErr  error
	issueErr    error
	queue       bool
	consumeLost bool
	updateErr   error

	issued    int
	delivered []PasswordResetDelivery
	lookups   int
	consumed  int
	updated   map[string]string
	onUpdated []string
	events    []string
}

func newResetHarness() *resetHarness {
	return &resetHarness{
		credentials: map[string]PasswordResetCredential{
			"a@x.com": {UserID: "u1", Identifier: "a@x.com", DisplayName: "A"},
		},
		codes:   map[string]string{},
		allow:   true,
		queue:   true,
		updated: map[string]string{},
	}
}

func (h *resetHarness) deps() PasswordResetDeps {
	return PasswordResetDeps{
		NewRequestID: func() string { return "req-1" },
		TryConsume: func(context.Context, string, string) (bool, error) {
			return h.allow, h.limiterErr
		},
		FindCredential: func(_ context.Context, id string) (PasswordResetCredential, error) {
			h.lookups++
			c, ok := h.credentials[id]
			if !ok {
				return PasswordResetCredential{}, errNotFound
			}
			return c, nil
		},
		IsCredentialNotFound: func(err error) bool { return errors.Is(err, errNotFound) },
		HashSecret: func(s string) (string, error) {
			if len(s) < 3 {
				return "", errPolicy
			}
			return "hash:" + s, nil
		},
		UpdateSecret: func(_ context.Context, id, hash string) error {
			if h.updateErr != nil {
				return h.updateErr
			}
			h.updated[id] = hash
			return nil
		},
		OnSecretUpdated: func(_ context.Context, id string) {
			h.onUpdated = append(h.onUpdated, id)
		},
		IssueCode: func(_ context.Context, id string) (string, time.Time, error) {
			if h.issueErr != nil {
				return "", time.Time{}, h.issueErr
			}
			h.issued++
			h.codes[id] = "123456"
			return "123456", time.Now().Add(15 * time.Minute), nil
		},
		ValidateCode: func(_ context.Context, id, code string) (bool, error) {
			return h.codes[id] == code && code != "", nil
		},
		ConsumeCode: func(_ context.Context, id, code string) (bool, error) {
			if h.consumeLost || h.codes[id] != code {
				return false, nil
			}
			h.consumed++
			delete(h.codes, id)
			return true, nil
		},
		Deliver: func(_ context.Context, d PasswordResetDelivery) bool {
			h.delivered = append(h.delivered, d)
			return h.queue
		},
		EmitAudit: func(_ context.Context, event string, _ bool, _, _ string, _ error, _ func() map[string]string) {
			h.events = append(h.events, event)
		},
		Events: PasswordResetEvents{
			Request:     "request",
			Validate:    "validate",
			Finalize:    "finalize",
			RateLimited: "rate_limited",
		},
		Errors: PasswordResetErrors{
			EngineNotReady:           errNotReady,
			PasswordResetUnavailable: errUnavailable,
			PasswordPolicy:           errPolicy,
		},
	}
}

func TestRequestPasswordResetKnownIdentifierIssuesAndDelivers(t *testing.T) {
	h := newResetHarness()
	found, err := RunRequestPasswordReset(context.Background(), "  A@X.com ", h.deps())
	if err != nil {
		t.Fatalf("RunRequestPasswordReset failed: %v", err)
	}
	if !found {
		t.Fatal("expected found for registered identifier")
	}
	if h.issued != 1 || len(h.delivered) != 1 {
		t.Fatalf("expected one issue and one delivery, got %d/%d", h.issued, len(h.delivered))
	}
	d := h.delivered[0]
	if d.Identifier != "a@x.com" || d.Code != "123456" || d.DisplayName != "A" || d.RequestID != "req-1" {
		t.Fatalf("unexpected delivery %+v", d)
	}
}

func TestRequestPasswordResetUnknownIdentifierIssuesNothing(t *testing.T) {
	h := newResetHarness()
	found, err := RunRequestPasswordReset(context.Background(), "b@x.com", h.deps())
	if err != nil || found {
		t.Fatalf("expected silent miss, found=%v err=%v", found, err)
	}
	if h.issued != 0 || len(h.delivered) != 0 {
		t.Fatal("expected no code for unknown identifier")
	}
}

func TestRequestPasswordResetRateLimitedSkipsLookup(t *testing.T) {
	h := newResetHarness()
	h.allow = false
	found, err := RunRequestPasswordReset(context.Background(), "a@x.com", h.deps())
	if err != nil || found {
		t.Fatalf("expected silent denial, found=%v err=%v", found, err)
	}
	if h.lookups != 0 || h.issued != 0 {
		t.Fatalf("expected no lookup or issue, got %d/%d", h.lookups, h.issued)
	}
	if len(h.events) != 1 || h.events[0] != "rate_limited" {
		t.Fatalf("expected rate_limited audit, got %v", h.events)
	}
}

func TestRequestPasswordResetLimiterErrorIsReturned(t *testing.T) {
	h := newResetHarness()
	h.limiterErr = errors.New("redis down")
	for _, id := range []string{"a@x.com", "b@x.com"} {
		if _, err := RunRequestPasswordReset(context.Background(), id, h.deps()); !errors.Is(err, errUnavailable) {
			t.Fatalf("%s: expected unavailable, got %v", id, err)
		}
	}
}

func TestRequestPasswordResetIssueAndDeliveryFailuresAreSilent(t *testing.T) {
	h := newResetHarness()
	h.queue = false
	found, err := RunRequestPasswordReset(context.Background(), "a@x.com", h.deps())
	if err != nil || !found {
		t.Fatalf("delivery failure should not surface, found=%v err=%v", found, err)
	}

	h.issueErr = errors.New("vault down")
	found, err = RunRequestPasswordReset(context.Background(), "a@x.com", h.deps())
	if err != nil || !found {
		t.Fatalf("issue failure should not surface, found=%v err=%v", found, err)
	}
}

func TestRequestPasswordResetEmptyIdentifier(t *testing.T) {
	h := newResetHarness()
	found, err := RunRequestPasswordReset(context.Background(), "   ", h.deps())
	if err != nil || found {
		t.Fatalf("expected generic outcome for empty identifier, found=%v err=%v", found, err)
	}
}

func TestPasswordResetMissingDepsNotReady(t *testing.T) {
	deps := PasswordResetDeps{Errors: PasswordResetErrors{EngineNotReady: errNotReady}}
	if _, err := RunRequestPasswordReset(context.Background(), "a@x.com", deps); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
	if _, err := RunValidateResetToken(context.Background(), "a@x.com", "123456", deps); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
	if _, err := RunFinalizePasswordReset(context.Background(), "a@x.com", "123456", "new", deps); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestFinalizePasswordResetHappyPath(t *testing.T) {
	h := newResetHarness()
	if _, err := RunRequestPasswordReset(context.Background(), "a@x.com", h.deps()); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	ok, err := RunFinalizePasswordReset(context.Background(), "A@x.com", "123456", "new", h.deps())
	if err != nil || !ok {
		t.Fatalf("expected finalize success, ok=%v err=%v", ok, err)
	}
	if h.updated["a@x.com"] != "hash:new" {
		t.Fatalf("expected hashed secret stored, got %q", h.updated["a@x.com"])
	}
	if len(h.onUpdated) != 1 {
		t.Fatal("expected post-update hook")
	}

	ok, _ = RunValidateResetToken(context.Background(), "a@x.com", "123456", h.deps())
	if ok {
		t.Fatal("expected code rejected after finalize")
	}
}

func TestFinalizePasswordResetPolicyFailureKeepsCode(t *testing.T) {
	h := newResetHarness()
	h.codes["a@x.com"] = "123456"

	ok, err := RunFinalizePasswordReset(context.Background(), "a@x.com", "123456", "no", h.deps())
	if ok || !errors.Is(err, errPolicy) {
		t.Fatalf("expected policy failure, ok=%v err=%v", ok, err)
	}
	if h.consumed != 0 {
		t.Fatal("policy failure must not consume the code")
	}
	if ok, _ := RunValidateResetToken(context.Background(), "a@x.com", "123456", h.deps()); !ok {
		t.Fatal("expected code still valid after policy failure")
	}
}

func TestFinalizePasswordResetFailures(t *testing.T) {
	t.Run("wrong code", func(t *testing.T) {
		h := newResetHarness()
		h.codes["a@x.com"] = "123456"
		ok, err := RunFinalizePasswordReset(context.Background(), "a@x.com", "654321", "new", h.deps())
		if ok || err != nil {
			t.Fatalf("expected plain false, ok=%v err=%v", ok, err)
		}
	})
	t.Run("lost consume race", func(t *testing.T) {
		h := newResetHarness()
		h.codes["a@x.com"] = "123456"
		h.consumeLost = true
		ok, err := RunFinalizePasswordReset(context.Background(), "a@x.com", "123456", "new", h.deps())
		if ok || err != nil {
			t.Fatalf("expected plain false, ok=%v err=%v", ok, err)
		}
		if len(h.updated) != 0 {
			t.Fatal("loser must not update the secret")
		}
	})
	t.Run("credential vanished", func(t *testing.T) {
		h := newResetHarness()
		h.codes["a@x.com"] = "123456"
		h.updateErr = errNotFound
		ok, err := RunFinalizePasswordReset(context.Background(), "a@x.com", "123456", "new", h.deps())
		if ok || err != nil {
			t.Fatalf("expected plain false, ok=%v err=%v", ok, err)
		}
	})
	t.Run("credential backend down", func(t *testing.T) {
		h := newResetHarness()
		h.codes["a@x.com"] = "123456"
		h.updateErr = errors.New("db down")
		ok, err := RunFinalizePasswordReset(context.Background(), "a@x.com", "123456", "new", h.deps())
		if ok || !errors.Is(err, errUnavailable) {
			t.Fatalf("expected unavailable, ok=%v err=%v", ok, err)
		}
	})
}
