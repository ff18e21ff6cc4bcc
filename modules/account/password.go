package account

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/qrmenu/handler"
	"github.com/dmitrymomot/qrmenu/modules/apierr"
	"github.com/dmitrymomot/qrmenu/pkg/binder"
	"github.com/dmitrymomot/qrmenu/pkg/jwt"
	"github.com/dmitrymomot/qrmenu/pkg/logger"
	"github.com/dmitrymomot/qrmenu/pkg/ratelimit"
	"github.com/dmitrymomot/qrmenu/svc/billing"
)

// Owners verifies store owner credentials.
type Owners interface {
	VerifyOwner(ctx context.Context, email, password string) (*billing.Tenant, error)
}

// Issuer signs access tokens.
type Issuer interface {
	Issue(subject string, role jwt.Role, tenantID, email string) (string, time.Time, error)
}

type PasswordService struct {
	owners       Owners
	tokens       Issuer
	limiter      *ratelimit.Limiter
	log          *slog.Logger
	errorHandler handler.ErrorHandler
}

type PasswordOption func(*PasswordService)

// WithLoginLimiter throttles login attempts per client IP.
func WithLoginLimiter(l *ratelimit.Limiter) PasswordOption {
	return func(s *PasswordService) { s.limiter = l }
}

func WithLogger(l *slog.Logger) PasswordOption {
	return func(s *PasswordService) {
		s.log = l
		s.errorHandler = apierr.Handler(l)
	}
}

func NewPasswordService(owners Owners, tokens Issuer, opts ...PasswordOption) *PasswordService {
	if owners == nil || tokens == nil {
		panic("account: owners and token issuer are required")
	}
	s := &PasswordService{
		owners:       owners,
		tokens:       tokens,
		log:          slog.Default(),
		errorHandler: apierr.Handler(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PasswordService) Handle() http.Handler {
	r := chi.NewRouter()
	if s.limiter != nil {
		r.Use(ratelimit.Middleware(s.limiter, ratelimit.KeyByIP))
	}

	r.Post("/login", handler.Wrap(s.login,
		handler.WithBinders(binder.JSON()),
		handler.WithErrorHandler(s.errorHandler),
	))

	return r
}

// LoginRequest carries owner credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Tenant      *billing.Tenant `json:"tenant"`
}

func (s *PasswordService) login(ctx handler.Context, req LoginRequest) handler.Response {
	t, err := s.owners.VerifyOwner(ctx, req.Email, req.Password)
	if err != nil {
		return handler.Fail(err)
	}
	token, exp, err := s.tokens.Issue(t.ID, jwt.RoleOwner, t.ID, t.OwnerEmail)
	if err != nil {
		return handler.Fail(err)
	}
	s.log.InfoContext(ctx, "owner logged in", logger.Event("owner_login"), logger.TenantID(t.ID))
	return handler.JSON(LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
		Tenant:      t,
	})
}
