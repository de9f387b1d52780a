// Package auth handles the Formbar OAuth login flow and cookie sessions.
//
// Identity establishment is delegated to the external provider: the callback
// carries a JWT whose claims identify the participant. As in the upstream
// deployment the token is minted by the provider the user was just redirected
// from, so claims are read without local signature verification and trust
// ends at this boundary.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yorktechapps/pixelplace/internal/app/services/ledger"
	"github.com/yorktechapps/pixelplace/pkg/logger"
)

const sessionCookie = "pixelplace_session"

// ErrNoSession is returned when the request carries no valid session.
var ErrNoSession = errors.New("no active session")

// Config holds the external provider endpoints.
type Config struct {
	AuthURL    string        // Formbar base URL
	ThisURL    string        // our login callback URL, registered with Formbar
	SessionTTL time.Duration // defaults to 12h
}

type formbarClaims struct {
	UserID      int64  `json:"userId"`
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	jwt.RegisteredClaims
}

func (c formbarClaims) externalID() int64 {
	if c.UserID != 0 {
		return c.UserID
	}
	return c.ID
}

type sessionEntry struct {
	participantID string
	expiresAt     time.Time
}

// Service authenticates requests and manages the in-memory session registry.
type Service struct {
	cfg    Config
	ledger *ledger.Service
	log    *logger.Logger

	mu       sync.RWMutex
	sessions map[string]sessionEntry
}

// New constructs the auth service.
func New(cfg Config, ledgerSvc *ledger.Service, log *logger.Logger) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Service{
		cfg:      cfg,
		ledger:   ledgerSvc,
		log:      log,
		sessions: make(map[string]sessionEntry),
	}
}

func (s *Service) oauthRedirectURL() string {
	return fmt.Sprintf("%s/oauth?redirectURL=%s", s.cfg.AuthURL, url.QueryEscape(s.cfg.ThisURL))
}

// HandleLogin completes the OAuth callback when a token is present and
// otherwise redirects to the provider.
func (s *Service) HandleLogin(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, s.oauthRedirectURL(), http.StatusFound)
		return
	}

	claims := formbarClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		s.log.WithError(err).Warn("rejecting malformed login token")
		http.Redirect(w, r, s.oauthRedirectURL(), http.StatusFound)
		return
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		http.Redirect(w, r, s.oauthRedirectURL(), http.StatusFound)
		return
	}
	if claims.externalID() == 0 || claims.DisplayName == "" {
		s.log.Warn("login token missing identity claims")
		http.Redirect(w, r, s.oauthRedirectURL(), http.StatusFound)
		return
	}

	p, err := s.ledger.Register(r.Context(), claims.externalID(), claims.DisplayName)
	if err != nil {
		s.log.WithError(err).Error("participant registration failed")
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	sessionToken := uuid.NewString()
	s.mu.Lock()
	s.sessions[sessionToken] = sessionEntry{
		participantID: p.ID,
		expiresAt:     time.Now().Add(s.cfg.SessionTTL),
	}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(s.cfg.SessionTTL),
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogout drops the session and sends the user back to login.
func (s *Service) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, cookie.Value)
		s.mu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{
		Name:    sessionCookie,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
	})
	http.Redirect(w, r, "/login", http.StatusFound)
}

// ParticipantID resolves the request's session to a participant.
func (s *Service) ParticipantID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", ErrNoSession
	}

	s.mu.RLock()
	entry, ok := s.sessions[cookie.Value]
	s.mu.RUnlock()
	if !ok {
		return "", ErrNoSession
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, cookie.Value)
		s.mu.Unlock()
		return "", ErrNoSession
	}
	return entry.participantID, nil
}

type contextKey struct{}

// ParticipantFromContext returns the participant id set by RequireAuth.
func ParticipantFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// RequireAuth redirects unauthenticated requests to the provider and injects
// the participant id into the request context otherwise.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.ParticipantID(r)
		if err != nil {
			http.Redirect(w, r, s.oauthRedirectURL(), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, id)))
	})
}
