package handlers

import (
	"net/http"

	"github.com/nkiryanov/authserver/internal/apperrors"
	"github.com/nkiryanov/authserver/internal/handlers/render"
	"github.com/nkiryanov/authserver/internal/handlers/userctx"
	"github.com/nkiryanov/authserver/internal/logger"
	"github.com/nkiryanov/authserver/internal/models"
	"github.com/nkiryanov/authserver/internal/service/auth"
)

type sessionResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken,omitempty"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Log failures the client can't fix. Client errors are reported by access log already
func logServerError(l logger.Logger, msg string, err error) {
	if apperrors.As(err).Status >= http.StatusInternalServerError {
		l.Error(msg, "error", err)
	}
}

// Attach refresh token the way transport wants and render the session
func renderSession(w http.ResponseWriter, authService authService, session auth.Session) {
	resp := sessionResponse{
		User:        session.User,
		AccessToken: session.Tokens.Access.Value,
	}

	if authService.RefreshInBody() {
		resp.RefreshToken = session.Tokens.Refresh.Value
	} else {
		authService.SetRefresh(w, session.Tokens.Refresh)
	}

	render.OK(w, resp)
}

func handleSignup(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		Email    string  `json:"email" validate:"required,email,max=255"`
		Password string  `json:"password" validate:"required,min=8"`
		Name     *string `json:"name" validate:"omitempty,max=255"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		session, err := authService.Signup(r.Context(), auth.SignupParams{
			Email:    data.Email,
			Password: data.Password,
			Name:     data.Name,
		})
		if err != nil {
			logServerError(logger, "signup failed", err)
			render.Error(w, err)
			return
		}

		renderSession(w, authService, session)
	})
}

func handleLogin(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		session, err := authService.Login(r.Context(), data.Email, data.Password)
		if err != nil {
			logServerError(logger, "login failed", err)
			render.Error(w, err)
			return
		}

		renderSession(w, authService, session)
	})
}

func handleRefresh(authService authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh := authService.RefreshFromRequest(r)

		result, err := authService.Refresh(r.Context(), refresh)
		if err != nil {
			logServerError(logger, "refresh failed", err)
			render.Error(w, err)
			return
		}

		resp := refreshResponse{AccessToken: result.Access.Value}
		if result.Refresh != nil {
			if authService.RefreshInBody() {
				resp.RefreshToken = result.Refresh.Value
			} else {
				authService.SetRefresh(w, *result.Refresh)
			}
		}

		render.OK(w, resp)
	})
}

func handleLogout(authService authService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authService.Logout(r.Context(), authService.RefreshFromRequest(r))
		authService.ClearRefresh(w)
		render.Message(w, "Logged out successfully")
	})
}

func handleProfile() http.Handler {
	type response struct {
		User models.PublicUser `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Auth middleware loaded the user from storage already
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.Error(w, apperrors.ErrUnauthorized)
			return
		}
		render.OK(w, response{User: user})
	})
}

func handleRevokeAccess(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		Token          string `json:"token" validate:"required"`
		Reason         string `json:"reason" validate:"max=255"`
		RevokeSessions bool   `json:"revokeSessions"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = authService.RevokeAccess(r.Context(), auth.RevokeAccessParams{
			Token:          data.Token,
			Reason:         data.Reason,
			RevokeSessions: data.RevokeSessions,
		})
		if err != nil {
			logServerError(logger, "access token revocation failed", err)
			render.Error(w, err)
			return
		}

		render.Message(w, "Access token revoked")
	})
}
