package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.PasswordReset.IssueCode != nil
}

func (s Service) RequestPasswordReset(ctx context.Context, identifier string) (bool, error) {
	return RunRequestPasswordReset(ctx, identifier, s.deps.PasswordReset)
}

func (s Service) ValidateResetToken(ctx context.Context, identifier, code string) (bool, error) {
	return RunValidateResetToken(ctx, identifier, code, s.deps.PasswordReset)
}

func (s Service) FinalizePasswordReset(ctx context.Context, identifier, code, newSecret string) (bool, error) {
	return RunFinalizePasswordReset(ctx, identifier, code, newSecret, s.deps.PasswordReset)
}

func (s Service) Register(ctx context.Context, req AccountRegisterRequest) (AccountRecord, error) {
	return RunRegister(ctx, req, s.deps.Account)
}

func (s Service) Authenticate(ctx context.Context, identifier, secret string) (string, error) {
	return RunAuthenticate(ctx, identifier, secret, s.deps.Login)
}

func (s Service) ValidateSession(ctx context.Context, token string) (SessionClaims, error) {
	return RunValidateSession(ctx, token, s.deps.Session)
}
