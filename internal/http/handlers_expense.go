package http

import (
	"net/http"
	"time"

	"expenzoo/internal/auth"
	"expenzoo/internal/log"
	"expenzoo/internal/services"
	"expenzoo/internal/storage"
)

// expenseResponse is the wire shape of an expense; ids go out as "_id".
type expenseResponse struct {
	ID          string    `json:"_id"`
	User        string    `json:"user"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	PaymentMode string    `json:"paymentMode"`
	Notes       string    `json:"notes"`
	ExpenseDate time.Time `json:"expenseDate"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toExpenseResponse(e storage.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		User:        e.UserID,
		Title:       e.Title,
		Category:    e.Category,
		Amount:      e.Amount,
		PaymentMode: e.PaymentMode,
		Notes:       e.Notes,
		ExpenseDate: e.ExpenseDate,
		CreatedAt:   e.CreatedAt,
	}
}

type createExpenseBody struct {
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Amount      *float64 `json:"amount"`
	PaymentMode string   `json:"paymentMode"`
	Notes       string   `json:"notes"`
	ExpenseDate string   `json:"expenseDate"`
}

type updateExpenseBody struct {
	Title       *string  `json:"title"`
	Category    *string  `json:"category"`
	Amount      *float64 `json:"amount"`
	PaymentMode *string  `json:"paymentMode"`
	Notes       *string  `json:"notes"`
	ExpenseDate *string  `json:"expenseDate"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	list, err := s.expenses.List(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err, "list")
		return
	}

	out := make([]expenseResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toExpenseResponse(e))
	}
	NewJSONResponse().Count(len(out)).Data(out).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var body createExpenseBody
	if resp := DecodeJSONOrFail(w, r, &body); resp != nil {
		resp.Write(w)
		return
	}

	in := services.ExpenseInput{
		Title:       sanitizeInput(body.Title),
		Category:    sanitizeInput(body.Category),
		Amount:      body.Amount,
		PaymentMode: sanitizeInput(body.PaymentMode),
		Notes:       sanitizeInput(body.Notes),
	}
	if body.ExpenseDate != "" {
		d, err := parseDate(body.ExpenseDate)
		if err != nil {
			BadRequestError("Please provide a valid expense date").Write(w)
			return
		}
		in.ExpenseDate = &d
	}

	e, err := s.expenses.Create(r.Context(), userID, in)
	if err != nil {
		s.writeServiceError(w, r, err, "create")
		return
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogExpenseCreated(r.Context(), userID, e.ID, e.Title, e.Amount, e.Category)
	NewJSONResponse().Status(http.StatusCreated).Data(toExpenseResponse(*e)).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	e, err := s.expenses.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "access")
		return
	}
	NewJSONResponse().Data(toExpenseResponse(*e)).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var body updateExpenseBody
	if resp := DecodeJSONOrFail(w, r, &body); resp != nil {
		resp.Write(w)
		return
	}

	patch := services.ExpensePatch{
		Title:       sanitizePtr(body.Title),
		Category:    sanitizePtr(body.Category),
		Amount:      body.Amount,
		PaymentMode: sanitizePtr(body.PaymentMode),
		Notes:       sanitizePtr(body.Notes),
	}
	if body.ExpenseDate != nil && *body.ExpenseDate != "" {
		d, err := parseDate(*body.ExpenseDate)
		if err != nil {
			BadRequestError("Please provide a valid expense date").Write(w)
			return
		}
		patch.ExpenseDate = &d
	}

	e, err := s.expenses.Update(r.Context(), userID, r.PathValue("id"), patch)
	if err != nil {
		s.writeServiceError(w, r, err, "update")
		return
	}
	NewJSONResponse().Data(toExpenseResponse(*e)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := s.expenses.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err, "delete")
		return
	}
	NewJSONResponse().Data(struct{}{}).Write(w)
}
