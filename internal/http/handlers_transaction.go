package http

import (
	"html/template"
	"net/http"

	"coinc/internal/auth"
	applog "coinc/internal/log"
	"coinc/internal/services"
)

const msgBodyTooLarge = "Request is too large."

// handleCreateTransaction adds a record for the signed-in user. Invalid
// input yields 422 with the field errors, a failed write 500.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if rb := RequirePOST(r); rb != nil {
		rb.Write(w)
		return
	}

	user, _ := auth.FromContext(r.Context())
	parser, ok := s.parseBody(w, r)
	if !ok {
		return
	}

	res := s.actions.Create(r.Context(), parser.TransactionInput(user.ID))
	switch res.State {
	case services.StateRejected:
		FieldErrorsResponse(res.Message, res.FieldErrors).
			TriggerErrorNotification(res.Message).
			Write(w)
	case services.StateCommitted:
		s.invalidate(res.Changed)
		t := res.Transaction
		NewHTMXResponse().
			TriggerTransactionsChanged(t.Month).
			TriggerFormReset().
			TriggerSuccessNotification(res.Message).
			BodyHTML(`<div class="success">` + template.HTMLEscapeString(res.Message) + ` ` +
				template.HTMLEscapeString(t.Description) + ` ` +
				template.HTMLEscapeString(s.money.Signed(*t)) + `</div>`).
			Write(w)
	default:
		InternalServerError(res.Message).
			TriggerErrorNotification(res.Message).
			Write(w)
	}
}

// handleDeleteTransaction removes one record of the signed-in user. The id
// comes from the transactionId field, or the id query parameter on DELETE.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if rb := RequireDeleteOrPOST(r); rb != nil {
		rb.Write(w)
		return
	}

	user, _ := auth.FromContext(r.Context())
	parser, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	id := parser.Get("transactionId")
	if id == "" && r.Method == http.MethodDelete {
		id = sanitizeInput(r.URL.Query().Get("id"))
	}

	res := s.actions.Delete(r.Context(), user.ID, id)
	switch res.State {
	case services.StateRejected:
		BadRequestError(res.Message).
			TriggerErrorNotification(res.Message).
			Write(w)
	case services.StateCommitted:
		s.invalidate(res.Changed)
		NewHTMXResponse().
			TriggerTransactionsChanged("").
			TriggerSuccessNotification(res.Message).
			Write(w)
	default:
		InternalServerError(res.Message).
			TriggerErrorNotification(res.Message).
			Write(w)
	}
}

// parseBody reads the form or JSON body. On failure it writes 413 for an
// oversized body and 400 otherwise.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	parser := NewRequestBodyParser(w, r)
	err := parser.Parse()
	if err == nil {
		return parser, true
	}
	s.logger.WarnContext(r.Context(), "Parse body error",
		applog.FieldError, err, applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path,
		applog.FieldErrorType, applog.ErrorTypeValidation)
	if BodyTooLarge(err) {
		ErrorResponse(http.StatusRequestEntityTooLarge, msgBodyTooLarge).
			TriggerErrorNotification(msgBodyTooLarge).
			Write(w)
		return nil, false
	}
	BadRequestError(services.MsgInvalidForm).Write(w)
	return nil, false
}
