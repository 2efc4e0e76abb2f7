package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"coinc/internal/auth"
	"coinc/internal/core"
	"coinc/internal/feed"
	applog "coinc/internal/log"
)

const msgLoadFailed = "Failed to load transactions."

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "not_checked"
	}

	checks["feed"] = map[string]interface{}{"subscribers": s.hub.Subscribers()}
	if s.snapshots != nil {
		checks["cache"] = map[string]interface{}{"entries": s.snapshots.Size()}
	}
	if s.limiter != nil {
		checks["rate_limiter"] = map[string]interface{}{
			"active_clients": s.limiter.ActiveClients(),
			"rejected":       s.limiter.Rejected(),
		}
	}
	checks["requests"] = map[string]interface{}{
		"total":      s.tracer.TotalRequests(),
		"suspicious": s.detector.SuspiciousRequests(),
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleIndex renders the dashboard of the signed-in user for ?month=.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if rb := RequireMethod(r, http.MethodGet, http.MethodHead); rb != nil {
		rb.Write(w)
		return
	}
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldComponent, applog.ComponentTemplate,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	user, _ := auth.FromContext(r.Context())
	month := ParseMonth(r.URL.Query(), s.now())
	data := pageView{
		User:   user,
		Month:  month,
		Months: core.MonthLabels(),
		Types:  []core.TransactionType{core.Expense, core.Income},
	}

	snap, err := s.snapshot(r.Context(), feed.Scope{Owner: user.ID, Month: month})
	if err != nil {
		s.slog.LogError(r.Context(), "Dashboard snapshot failed", err, applog.ComponentHTTP, applog.OpList,
			applog.NewFields().WithScope(user.ID, month).WithErrorType(applog.ErrorTypeDatabase))
		data.Error = msgLoadFailed
		snap = feed.Snapshot{Scope: feed.Scope{Owner: user.ID, Month: month}, Summary: core.Aggregate(nil)}
	}
	data.View = newMonthView(snap, s.money)

	s.render(w, r, "index.html", data)
}

// handleMonth renders the summary cards and table for HTMX refreshes.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	if rb := RequireMethod(r, http.MethodGet); rb != nil {
		rb.Write(w)
		return
	}
	if s.templates == nil {
		InternalServerError("templates not loaded").Write(w)
		return
	}

	user, _ := auth.FromContext(r.Context())
	month := ParseMonth(r.URL.Query(), s.now())
	snap, err := s.snapshot(r.Context(), feed.Scope{Owner: user.ID, Month: month})
	if err != nil {
		s.slog.LogError(r.Context(), "Month partial snapshot failed", err, applog.ComponentHTTP, applog.OpList,
			applog.NewFields().WithScope(user.ID, month).WithErrorType(applog.ErrorTypeDatabase))
		InternalServerError(msgLoadFailed).TriggerErrorNotification(msgLoadFailed).Write(w)
		return
	}

	s.render(w, r, "month", newMonthView(snap, s.money))
}

// handleAPITransactions returns the snapshot of ?month= as JSON.
func (s *Server) handleAPITransactions(w http.ResponseWriter, r *http.Request) {
	if rb := RequireMethod(r, http.MethodGet); rb != nil {
		rb.Write(w)
		return
	}

	user, _ := auth.FromContext(r.Context())
	month := ParseMonth(r.URL.Query(), s.now())
	snap, err := s.snapshot(r.Context(), feed.Scope{Owner: user.ID, Month: month})
	if err != nil {
		s.slog.LogError(r.Context(), "API snapshot failed", err, applog.ComponentHTTP, applog.OpList,
			applog.NewFields().WithScope(user.ID, month).WithErrorType(applog.ErrorTypeDatabase))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgLoadFailed})
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotJSON(snap, s.money, false))
}

// render executes name into a buffer first so a failing template never
// leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.slog.LogError(r.Context(), "Template execution failed", err, applog.ComponentTemplate, applog.OpRender,
			applog.NewFields().WithErrorType(applog.ErrorTypeInternal))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
