package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"expenzoo/internal/log"
	"expenzoo/internal/services"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Expenzoo API is running..."))
}

// handleHealth is the liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	if s.db == nil {
		checks["database"] = "not_configured"
	} else if err := s.db.Ping(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Readiness check failed", log.FieldError, err)
		checks["database"] = "failed"
		ErrorResponse(http.StatusServiceUnavailable, "not ready").Data(checks).Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"status":     "ready",
		"active_ips": s.otpLimiter.ActiveClients(),
		"checks":     checks,
	}).Write(w)
}

// writeServiceError maps service errors onto envelope responses. action
// names the attempted operation in the 401 message for foreign expenses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		BadRequestError(verr.Message).Write(w)
	case errors.Is(err, services.ErrInvalidOTP):
		BadRequestError("Invalid or expired OTP").Write(w)
	case errors.Is(err, services.ErrNotFound):
		NotFoundError("Expense not found").Write(w)
	case errors.Is(err, services.ErrForbidden):
		UnauthorizedError("Not authorized to " + action + " this expense").Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldOperation, action,
			log.FieldPath, r.URL.Path)
		InternalServerError().Write(w)
	}
}
