package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nkiryanov/authserver/internal/handlers/middleware"
	"github.com/nkiryanov/authserver/internal/logger"
	"github.com/nkiryanov/authserver/internal/models"
	"github.com/nkiryanov/authserver/internal/service/auth"
)

type RouterConfig struct {
	// Origins allowed to call the api from browser. Empty disables CORS headers
	CORSOrigins []string

	// Upper bound of request handling time. Zero means no timeout
	RequestTimeout time.Duration
}

func NewRouter(
	cfg RouterConfig,
	authService authService,
	health pinger,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.NewAuth(authService, logger)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware.Auth(h)
	}
	withAdmin := func(h http.Handler) http.Handler {
		return middleware.Chain(h, authMiddleware.Auth, authMiddleware.RequireRole(models.RoleAdmin))
	}

	apiauth := http.NewServeMux()

	apiauth.Handle("POST /signup", handleSignup(authService, logger))
	apiauth.Handle("POST /login", handleLogin(authService, logger))
	apiauth.Handle("POST /refresh", handleRefresh(authService, logger))
	apiauth.Handle("POST /logout", handleLogout(authService))
	apiauth.Handle("GET /profile", withAuth(handleProfile()))
	apiauth.Handle("POST /admin/revoke-access", withAdmin(handleRevokeAccess(authService, logger)))

	root := http.NewServeMux()
	root.Handle("/auth/", http.StripPrefix("/auth", apiauth))
	root.Handle("GET /healthz", handleHealth(health, logger))

	mds := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Logger(logger),
	}
	if len(cfg.CORSOrigins) > 0 {
		mds = append(mds, middleware.CORS(cfg.CORSOrigins))
	}
	if cfg.RequestTimeout > 0 {
		mds = append(mds, middleware.Timeout(cfg.RequestTimeout))
	}

	return middleware.Chain(root, mds...)
}

type authService interface {
	// Register user and start a session
	// Has to return apperrors.ErrUserAlreadyExists if email is taken
	Signup(ctx context.Context, params auth.SignupParams) (auth.Session, error)

	// Has to return apperrors.ErrInvalidCredentials if user not found or password is wrong
	Login(ctx context.Context, email string, password string) (auth.Session, error)

	// Issue new access token using refresh token
	Refresh(ctx context.Context, refresh string) (auth.RefreshResult, error)

	// Revoke refresh token. Never fails
	Logout(ctx context.Context, refresh string)

	// Return the user access token belongs to
	Authenticate(ctx context.Context, access string) (models.PublicUser, error)

	// Blacklist access token
	RevokeAccess(ctx context.Context, params auth.RevokeAccessParams) error

	// Refresh token transport
	RefreshInBody() bool
	SetRefresh(w http.ResponseWriter, token models.IssuedToken)
	ClearRefresh(w http.ResponseWriter)
	RefreshFromRequest(r *http.Request) string
}

type pinger interface {
	Ping(ctx context.Context) error
}
