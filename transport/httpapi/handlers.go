package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/middleware"
	"go.uber.org/zap"
)

const (
	msgInvalidPayload = "invalid request payload"
	msgMissingFields  = "missing fields"
	msgUnavailable    = "service unavailable"
)

type resetRequestBody struct {
	Identifier string `json:"identifier"`
}

type resetRequestResponse struct {
	Message string `json:"message"`
	Found   *bool  `json:"found,omitempty"`
}

type resetValidateBody struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

type resetFinalizeBody struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
	NewSecret  string `json:"new_secret"`
}

type registerBody struct {
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name"`
	Secret      string `json:"secret"`
}

type loginBody struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, msgInvalidPayload)
		return false
	}
	return true
}

// unavailable logs err and answers with the fixed 503 body.
func (s *server) unavailable(w http.ResponseWriter, op string, err error) {
	s.logger.Warn("request failed", zap.String("op", op), zap.Error(err))
	writeJSONError(w, http.StatusServiceUnavailable, msgUnavailable)
}

func (s *server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) resetRequestHandler(w http.ResponseWriter, r *http.Request) {
	var req resetRequestBody
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.engine.RequestPasswordReset(r.Context(), req.Identifier)
	if err != nil {
		s.unavailable(w, "password_reset_request", err)
		return
	}

	out := resetRequestResponse{Message: resp.Message}
	if s.exposeFound {
		found := resp.Found
		out.Found = &found
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) resetValidateHandler(w http.ResponseWriter, r *http.Request) {
	var req resetValidateBody
	if !s.decode(w, r, &req) {
		return
	}

	valid, err := s.engine.ValidateResetToken(r.Context(), req.Identifier, req.Code)
	if err != nil {
		s.unavailable(w, "password_reset_validate", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (s *server) resetFinalizeHandler(w http.ResponseWriter, r *http.Request) {
	var req resetFinalizeBody
	if !s.decode(w, r, &req) {
		return
	}

	ok, err := s.engine.FinalizePasswordReset(r.Context(), req.Identifier, req.Code, req.NewSecret)
	if err != nil {
		if errors.Is(err, goReset.ErrPasswordPolicy) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "password does not meet policy",
			})
			return
		}
		s.unavailable(w, "password_reset_finalize", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

func (s *server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerBody
	if !s.decode(w, r, &req) {
		return
	}
	if req.Identifier == "" || req.Secret == "" {
		writeJSONError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	record, err := s.engine.Register(r.Context(), goReset.RegisterRequest{
		Identifier:  req.Identifier,
		DisplayName: req.DisplayName,
		Secret:      req.Secret,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{
			"user_id":    record.UserID,
			"identifier": record.Identifier,
		})
	case errors.Is(err, goReset.ErrCredentialExists):
		writeJSONError(w, http.StatusConflict, "identifier already registered")
	case errors.Is(err, goReset.ErrRegistrationInvalid), errors.Is(err, goReset.ErrPasswordPolicy):
		writeJSONError(w, http.StatusBadRequest, "invalid registration")
	case errors.Is(err, goReset.ErrRegistrationDisabled):
		writeJSONError(w, http.StatusForbidden, "registration disabled")
	case errors.Is(err, goReset.ErrRegistrationRateLimited):
		writeJSONError(w, http.StatusTooManyRequests, "too many requests")
	default:
		s.unavailable(w, "register", err)
	}
}

func (s *server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginBody
	if !s.decode(w, r, &req) {
		return
	}
	if req.Identifier == "" || req.Secret == "" {
		writeJSONError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	token, err := s.engine.Authenticate(r.Context(), req.Identifier, req.Secret)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	case errors.Is(err, goReset.ErrInvalidCredentials):
		writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, goReset.ErrLoginLocked):
		writeJSONError(w, http.StatusTooManyRequests, "too many attempts")
	default:
		s.unavailable(w, "login", err)
	}
}

func (s *server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":    info.UserID,
		"identifier": info.Identifier,
	})
}
