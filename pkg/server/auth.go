package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/nodeenergy/nodeenergy/pkg/log"
)

const authTokenCookie = "auth_token"

type contextKey string

const identityContextKey contextKey = "identity"

// identity is the verified subject of an ID token.
type identity struct {
	Email   string
	Subject string
	Expiry  time.Time
}

// tokenVerifier validates a raw ID token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (identity, error)

func oidcVerifier(v *oidc.IDTokenVerifier) tokenVerifier {
	return func(ctx context.Context, rawIDToken string) (identity, error) {
		idToken, err := v.Verify(ctx, rawIDToken)
		if err != nil {
			return identity{}, err
		}
		var claims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return identity{}, fmt.Errorf("error decoding claims: %w", err)
		}
		return identity{Email: claims.Email, Subject: idToken.Subject, Expiry: idToken.Expiry}, nil
	}
}

func (s *Server) authRequired() bool {
	return len(s.oidcVerifiers) > 0
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))

		allowNoLogin := r.URL.Path == "/healthz" || strings.HasPrefix(r.URL.Path, "/api/auth/")
		if !s.authRequired() {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// bearer tokens are used by the host pushing states, cookies by browsers
		var token string
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Ctx(ctx).WarnContext(ctx, "invalid auth header")
				writeJSONError(w, "invalid auth header", http.StatusBadRequest)
				return
			}
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else if authCookie, err := r.Cookie(authTokenCookie); err == nil {
			token = authCookie.Value
		}

		if token != "" {
			id, err := s.authenticateToken(ctx, token, "")
			if err != nil {
				log.Ctx(ctx).WarnContext(ctx, "auth token validation failed", slog.Any("error", err))
				if !allowNoLogin {
					s.clearCookie(w)
					writeJSONError(w, "invalid auth token", http.StatusUnauthorized)
					return
				}
			} else if !s.emailAllowed(id.Email) {
				log.Ctx(ctx).WarnContext(ctx, "email not allowed", slog.String("email", id.Email))
				if !allowNoLogin {
					writeJSONError(w, "access denied", http.StatusForbidden)
					return
				}
			} else {
				ctx = context.WithValue(ctx, identityContextKey, id)
				ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("authSubject", id.Subject)))
			}
		}

		if _, ok := ctx.Value(identityContextKey).(identity); !ok && !allowNoLogin {
			log.Ctx(ctx).WarnContext(ctx, "unauthenticated request")
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) emailAllowed(email string) bool {
	if len(s.allowedEmails) == 0 {
		return true
	}
	return slices.Contains(s.allowedEmails, email)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token  string `json:"token"`
		Client string `json:"client"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// since we failed to read, don't return JSON error
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	id, err := s.authenticateToken(r.Context(), req.Token, req.Client)
	if err != nil {
		log.Ctx(r.Context()).WarnContext(r.Context(), "failed to validate id token", slog.Any("error", err))
		writeJSONError(w, "invalid id token", http.StatusUnauthorized)
		return
	}
	if id.Email == "" || !s.emailAllowed(id.Email) {
		log.Ctx(r.Context()).WarnContext(r.Context(), "login email not allowed", slog.String("email", id.Email))
		writeJSONError(w, "access denied", http.StatusForbidden)
		return
	}

	log.Ctx(r.Context()).InfoContext(r.Context(), "login token validated successfully", slog.String("email", id.Email), slog.String("subject", id.Subject))

	http.SetCookie(w, &http.Cookie{
		Name:     authTokenCookie,
		Value:    req.Token,
		Expires:  id.Expiry,
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
	})

	w.WriteHeader(http.StatusOK)
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authTokenCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearCookie(w)
	w.WriteHeader(http.StatusOK)
}

type authStatusResponse struct {
	LoggedIn     bool              `json:"loggedIn"`
	Email        string            `json:"email"`
	AuthRequired bool              `json:"authRequired"`
	ClientIDs    map[string]string `json:"clientIDs"`
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	id, loggedIn := r.Context().Value(identityContextKey).(identity)
	writeJSON(w, authStatusResponse{
		LoggedIn:     loggedIn,
		Email:        id.Email,
		AuthRequired: s.authRequired(),
		ClientIDs:    s.oidcAudiences,
	})
}

func (s *Server) authenticateToken(ctx context.Context, token string, specificClient string) (identity, error) {
	var errs []error

	for providerName, verifier := range s.oidcVerifiers {
		if specificClient != "" && providerName != specificClient {
			continue
		}
		id, err := verifier(ctx, token)
		if err == nil {
			return id, nil
		}
		errs = append(errs, fmt.Errorf("%s verifier failed: %v", providerName, err))
	}

	if len(errs) > 1 {
		return identity{}, errors.Join(errs...)
	}
	if len(errs) == 1 {
		return identity{}, errs[0]
	}
	return identity{}, errors.New("no valid audiences configured or token invalid")
}
