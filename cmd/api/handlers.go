package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/microfin/pkg/apperr"
	"github.com/mcclellann/microfin/pkg/ledger"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/shopspring/decimal"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

// writeError maps an error to its HTTP status. Infrastructure failures are
// logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	resp := errorResponse{Error: err.Error(), Kind: kind.String()}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		resp.Error = appErr.Error()
		resp.Field = appErr.Field
	}

	status := http.StatusInternalServerError
	switch kind {
	case apperr.Validation:
		status = http.StatusBadRequest
	case apperr.Conflict:
		status = http.StatusConflict
	case apperr.NotFound:
		status = http.StatusNotFound
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		resp.Error = "internal error"
	}
	respondJSON(w, status, resp)
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, field, msg string) {
	s.writeError(w, r, apperr.ValidationError(field, "%s", msg))
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	return id, err == nil
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var app ledger.LoanApplication
	if err := decode(r, &app); err != nil {
		s.badRequest(w, r, "", err.Error())
		return
	}

	loan, err := s.ledger.CreateLoan(r.Context(), app)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, loan)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(r)
	if !ok {
		s.badRequest(w, r, "id", "invalid loan ID")
		return
	}

	loan, err := s.scopedLoan(r, loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loan)
}

func (s *Server) referenceHandler(w http.ResponseWriter, r *http.Request) {
	loan, err := s.ledger.FindLoanByReference(r.Context(), mux.Vars(r)["reference"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loan)
}

// scopedLoan loads a loan, hiding it when ?borrower_id names someone else.
func (s *Server) scopedLoan(r *http.Request, loanID uuid.UUID) (*models.Loan, error) {
	loan, err := s.ledger.GetLoan(r.Context(), loanID)
	if err != nil {
		return nil, err
	}
	b := r.URL.Query().Get("borrower_id")
	if b == "" {
		return loan, nil
	}
	borrowerID, err := uuid.Parse(b)
	if err != nil {
		return nil, apperr.ValidationError("borrower_id", "invalid borrower ID")
	}
	if borrowerID != loan.BorrowerID {
		return nil, apperr.NotFoundError("loan not found")
	}
	return loan, nil
}

func (s *Server) updateLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(r)
	if !ok {
		s.badRequest(w, r, "id", "invalid loan ID")
		return
	}

	var update ledger.LoanUpdate
	if err := decode(r, &update); err != nil {
		s.badRequest(w, r, "", err.Error())
		return
	}

	loan, err := s.ledger.UpdateLoan(r.Context(), loanID, update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loan)
}

func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(r)
	if !ok {
		s.badRequest(w, r, "id", "invalid loan ID")
		return
	}

	if _, err := s.scopedLoan(r, loanID); err != nil {
		s.writeError(w, r, err)
		return
	}
	installments, err := s.ledger.GetSchedule(r.Context(), loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, installments)
}

func (s *Server) transitionHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(r)
	if !ok {
		s.badRequest(w, r, "id", "invalid loan ID")
		return
	}

	var req struct {
		Status  string `json:"status"`
		Remarks string `json:"remarks"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, r, "", err.Error())
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		s.badRequest(w, r, "status", err.Error())
		return
	}

	loan, err := s.ledger.Transition(r.Context(), loanID, status, req.Remarks)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loan)
}

func (s *Server) cancelLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(r)
	if !ok {
		s.badRequest(w, r, "id", "invalid loan ID")
		return
	}

	var req struct {
		BorrowerID uuid.UUID `json:"borrower_id"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, r, "", err.Error())
		return
	}

	loan, err := s.ledger.CancelLoan(r.Context(), loanID, req.BorrowerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loan)
}

func (s *Server) submitPaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(r)
	if !ok {
		s.badRequest(w, r, "id", "invalid loan ID")
		return
	}

	var req struct {
		BorrowerID    uuid.UUID       `json:"borrower_id"`
		InstallmentID *uuid.UUID      `json:"installment_id"`
		Amount        decimal.Decimal `json:"amount"`
		ReceiptRef    string          `json:"receipt_ref"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, r, "", err.Error())
		return
	}

	payment, err := s.ledger.SubmitPayment(r.Context(), ledger.PaymentRequest{
		LoanID:        loanID,
		BorrowerID:    req.BorrowerID,
		InstallmentID: req.InstallmentID,
		Amount:        req.Amount,
		ReceiptRef:    req.ReceiptRef,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, payment)
}

func (s *Server) approvePaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathID(r)
	if !ok {
		s.badRequest(w, r, "id", "invalid payment ID")
		return
	}

	var req struct {
		PenaltyApplied *decimal.Decimal `json:"penalty_applied"`
	}
	// The override is optional, so an empty body (chunked or not) is fine.
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(w, r, "", err.Error())
		return
	}

	payment, err := s.ledger.ApprovePayment(r.Context(), paymentID, req.PenaltyApplied)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

func (s *Server) rejectPaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathID(r)
	if !ok {
		s.badRequest(w, r, "id", "invalid payment ID")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, r, "", err.Error())
		return
	}

	payment, err := s.ledger.RejectPayment(r.Context(), paymentID, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Principal         decimal.Decimal `json:"principal"`
		AnnualRatePercent decimal.Decimal `json:"annual_rate_percent"`
		TermMonths        int             `json:"term_months"`
		StartDate         *time.Time      `json:"start_date"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, r, "", err.Error())
		return
	}

	var start time.Time
	if req.StartDate != nil {
		start = *req.StartDate
	}
	plan, err := s.quotes.Quote(r.Context(), req.Principal, req.AnnualRatePercent, req.TermMonths, start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.storage.Ping(ctx); err != nil {
		s.log.WithError(err).Error("Health probe failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
