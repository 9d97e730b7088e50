package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// refreshLeeway is how close to expiry a token may get before the session
// refreshes it ahead of a request instead of waiting for a 401.
const refreshLeeway = 30 * time.Second

// Session holds the bearer credential for the backend and implements the
// single-retry refresh protocol: one refresh attempt per authorization
// failure, then logout. A refresh that cannot reach the backend is a
// connectivity failure, not a reason to log out.
type Session struct {
	mu         sync.Mutex
	refreshURL string
	client     *http.Client
	token      string
	logout     func()
}

func NewSession(baseURL string, token string, logout func()) *Session {
	if logout == nil {
		logout = func() {}
	}
	return &Session{
		refreshURL: baseURL + "/auth/refresh",
		client:     &http.Client{Timeout: 10 * time.Second},
		token:      token,
		logout:     logout,
	}
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// ExpiringSoon inspects the token's exp claim without verifying the
// signature (the client does not hold the signing secret). Tokens that do
// not parse are left for the backend to reject.
func (s *Session) ExpiringSoon() bool {
	token := s.Token()
	if token == "" {
		return false
	}

	claims := jwtlib.MapClaims{}
	parser := jwtlib.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < refreshLeeway
}

// Refresh trades the current credential for a fresh one. On an error
// response the session logs out and reports an ApplicationError; on a
// network failure it reports a ConnectivityError and keeps the session.
func (s *Session) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.refreshURL, bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := s.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &ConnectivityError{Op: "POST /auth/refresh", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		s.logout()
		return &ApplicationError{Status: resp.StatusCode, Message: "session expired"}
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.AccessToken == "" {
		s.logout()
		return &ApplicationError{Status: resp.StatusCode, Message: "refresh returned no access token"}
	}

	s.SetToken(body.AccessToken)
	return nil
}

// Logout clears the credential and fires the logout callback.
func (s *Session) Logout() {
	s.SetToken("")
	s.logout()
}
