package http

import (
	"net/http"
	"net/url"

	applog "coinc/internal/log"
)

var signInErrors = map[string]string{
	"state":  "Your sign-in session expired. Please try again.",
	"denied": "Sign-in was cancelled.",
	"failed": "Sign-in failed. Please try again.",
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if rb := RequireMethod(r, http.MethodGet); rb != nil {
		rb.Write(w)
		return
	}
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "login.html", struct {
		Provider string
		Error    string
	}{
		Provider: s.provider.Name(),
		Error:    signInErrors[r.URL.Query().Get("error")],
	})
}

// handleAuthLogin starts the provider flow with a fresh state cookie.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if rb := RequireMethod(r, http.MethodGet); rb != nil {
		rb.Write(w)
		return
	}
	state, err := s.sessions.NewState(w)
	if err != nil {
		s.slog.LogError(r.Context(), "Cannot start sign-in", err, applog.ComponentAuth, applog.OpSignIn,
			applog.NewFields().WithErrorType(applog.ErrorTypeInternal))
		http.Error(w, "sign-in unavailable", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, s.provider.AuthCodeURL(state), http.StatusSeeOther)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if rb := RequireMethod(r, http.MethodGet); rb != nil {
		rb.Write(w)
		return
	}
	ctx := r.Context()
	logger := s.logger.WithComponent(applog.ComponentAuth)

	if !s.sessions.CheckState(w, r) {
		logger.WarnContext(ctx, "OAuth state mismatch",
			applog.FieldClientIP, s.detector.ExtractClientIP(r), applog.FieldErrorType, applog.ErrorTypeAuth)
		redirectLogin(w, r, "state")
		return
	}
	if reason := r.URL.Query().Get("error"); reason != "" {
		logger.InfoContext(ctx, "Sign-in declined at provider", "reason", reason)
		redirectLogin(w, r, "denied")
		return
	}

	user, err := s.provider.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		s.slog.LogError(ctx, "Sign-in exchange failed", err, applog.ComponentAuth, applog.OpSignIn,
			applog.NewFields().WithErrorType(applog.ErrorTypeAuth))
		redirectLogin(w, r, "failed")
		return
	}
	if err := s.sessions.Issue(w, user); err != nil {
		s.slog.LogError(ctx, "Cannot issue session", err, applog.ComponentAuth, applog.OpSignIn,
			applog.NewFields().WithErrorType(applog.ErrorTypeInternal))
		redirectLogin(w, r, "failed")
		return
	}

	logger.InfoContext(ctx, "User signed in",
		applog.FieldUserID, user.ID, applog.FieldOperation, applog.OpSignIn, "provider", s.provider.Name())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout clears the session. HTMX callers are redirected through
// HX-Redirect.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if rb := RequirePOST(r); rb != nil {
		rb.Write(w)
		return
	}
	s.sessions.Clear(w)
	s.logger.WithComponent(applog.ComponentAuth).InfoContext(r.Context(), "User signed out",
		applog.FieldOperation, applog.OpSignOut)

	if r.Header.Get("HX-Request") == "true" {
		NewHTMXResponse().Header("HX-Redirect", loginPath).Write(w)
		return
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func redirectLogin(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, loginPath+"?"+url.Values{"error": {reason}}.Encode(), http.StatusSeeOther)
}
