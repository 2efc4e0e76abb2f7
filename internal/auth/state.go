package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/gofrs/uuid/v5"
)

const stateCookie = "coinc_oauth_state"

// NewState sets a short-lived cookie holding a fresh OAuth state value.
func (s *Sessions) NewState(w http.ResponseWriter) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := id.String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// CheckState compares the callback state with the cookie and clears it.
func (s *Sessions) CheckState(w http.ResponseWriter, r *http.Request) bool {
	c, err := r.Cookie(stateCookie)
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth", MaxAge: -1, HttpOnly: true, Secure: s.secure})
	if err != nil || c.Value == "" {
		return false
	}
	got := r.URL.Query().Get("state")
	return subtle.ConstantTimeCompare([]byte(got), []byte(c.Value)) == 1
}
