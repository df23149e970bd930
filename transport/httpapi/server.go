package httpapi

import (
	"context"
	"io"
	"net/http"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const defaultMaxBodyBytes = 64 << 10

// Engine is the subset of *goReset.Engine served over HTTP.
type Engine interface {
	RequestPasswordReset(ctx context.Context, identifier string) (goReset.ResetResponse, error)
	ValidateResetToken(ctx context.Context, identifier, code string) (bool, error)
	FinalizePasswordReset(ctx context.Context, identifier, code, newSecret string) (bool, error)
	Register(ctx context.Context, req goReset.RegisterRequest) (goReset.CredentialRecord, error)
	Authenticate(ctx context.Context, identifier, secret string) (string, error)
	ValidateSession(ctx context.Context, token string) (goReset.SessionInfo, error)
}

// Options configures NewHandler.
type Options struct {
	Logger *zap.Logger
	// Metrics is mounted at GET /metrics when non-nil.
	Metrics http.Handler
	// AccessLog receives Apache combined log lines. Nil disables access logging.
	AccessLog      io.Writer
	TrustedProxies []string
	ExposeFound    bool
	MaxBodyBytes   int64
}

type server struct {
	engine       Engine
	logger       *zap.Logger
	exposeFound  bool
	maxBodyBytes int64
}

// NewHandler builds the HTTP surface for engine.
func NewHandler(engine Engine, opts Options) http.Handler {
	s := &server{
		engine:       engine,
		logger:       opts.Logger,
		exposeFound:  opts.ExposeFound,
		maxBodyBytes: opts.MaxBodyBytes,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = defaultMaxBodyBytes
	}

	router := mux.NewRouter()
	router.Use(middleware.ClientIP(opts.TrustedProxies...))

	router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return handlers.ContentTypeHandler(next, "application/json")
	})
	api.HandleFunc("/password-reset/request", s.resetRequestHandler).Methods(http.MethodPost)
	api.HandleFunc("/password-reset/validate", s.resetValidateHandler).Methods(http.MethodPost)
	api.HandleFunc("/password-reset/finalize", s.resetFinalizeHandler).Methods(http.MethodPost)
	api.HandleFunc("/register", s.registerHandler).Methods(http.MethodPost)
	api.HandleFunc("/login", s.loginHandler).Methods(http.MethodPost)
	api.Handle("/session", middleware.RequireSession(engine)(http.HandlerFunc(s.sessionHandler))).Methods(http.MethodGet)

	var h http.Handler = router
	if opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(opts.AccessLog, h)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(zapRecoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
}

// zapRecoveryLogger adapts zap to handlers.RecoveryHandlerLogger.
type zapRecoveryLogger struct {
	logger *zap.Logger
}

func (l zapRecoveryLogger) Println(v ...interface{}) {
	l.logger.Error("http handler panic", zap.Any("recovered", v))
}
