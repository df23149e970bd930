package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	goReset "github.com/MrEthical07/goReset"
)

type stubValidator struct {
	info goReset.SessionInfo
	err  error
	got  string
}

func (s *stubValidator) ValidateSession(_ context.Context, token string) (goReset.SessionInfo, error) {
	s.got = token
	return s.info, s.err
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestRequireSessionInjectsSession(t *testing.T) {
	v := &stubValidator{info: goReset.SessionInfo{UserID: "u1", Identifier: "a@x.com"}}

	var seen goReset.SessionInfo
	h := RequireSession(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := SessionFromContext(r.Context())
		if !ok {
			t.Fatalf("session missing from context")
		}
		seen = info
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	r.Header.Set("Authorization", "Bearer tok-1")
	rec := serve(h, r)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if v.got != "tok-1" || seen.UserID != "u1" {
		t.Fatalf("unexpected token %q or session %+v", v.got, seen)
	}
}

func TestRequireSessionRejects(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("next must not run")
	})

	tests := []struct {
		name   string
		v      SessionValidator
		header string
		want   int
	}{
		{"nil validator", nil, "Bearer x", http.StatusUnauthorized},
		{"missing header", &stubValidator{}, "", http.StatusUnauthorized},
		{"wrong scheme", &stubValidator{}, "Basic abc", http.StatusUnauthorized},
		{"empty token", &stubValidator{}, "Bearer ", http.StatusUnauthorized},
		{"invalid session", &stubValidator{err: goReset.ErrSessionInvalid}, "Bearer x", http.StatusUnauthorized},
		{"backend down", &stubValidator{err: goReset.ErrSessionUnavailable}, "Bearer x", http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			if rec := serve(RequireSession(tc.v)(next), r); rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		forward string
		trusted []string
		want    string
	}{
		{"remote addr", "203.0.113.7:5123", "", nil, "203.0.113.7"},
		{"untrusted forward ignored", "203.0.113.7:5123", "198.51.100.1", nil, "203.0.113.7"},
		{"trusted forward used", "10.0.0.2:4000", "198.51.100.1, 10.0.0.9", []string{"10.0.0.2"}, "198.51.100.1"},
		{"trusted garbage forward ignored", "10.0.0.2:4000", "not-an-ip", []string{"10.0.0.2"}, "10.0.0.2"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := ClientIP(tc.trusted...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = goReset.ClientIPFromContext(r.Context())
			}))

			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.forward != "" {
				r.Header.Set("X-Forwarded-For", tc.forward)
			}
			serve(h, r)

			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
