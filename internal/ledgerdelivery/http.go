// Package ledgerdelivery manages delivery layer of the minutes ledger.
package ledgerdelivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/minutes-ledger/internal/domain"
	"github.com/go-petr/minutes-ledger/internal/middleware"
	"github.com/go-petr/minutes-ledger/pkg/errorspkg"
	"github.com/go-petr/minutes-ledger/pkg/minutespkg"
	"github.com/go-petr/minutes-ledger/pkg/web"
)

// Service provides service layer interface needed by ledger delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package ledgerdelivery
type Service interface {
	Balance(ctx context.Context, id int64) (decimal.Decimal, error)
	Debit(ctx context.Context, id int64, amount decimal.Decimal, description string) (domain.LedgerTxResult, error)
	Credit(ctx context.Context, id int64, amount decimal.Decimal, description string) (domain.LedgerTxResult, error)
	History(ctx context.Context, id int64, limit int32) ([]domain.Entry, error)
}

// DefaultHistoryLimit is the number of entries returned when no limit is requested.
const DefaultHistoryLimit = 50

// Handler facilitates ledger delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns ledger handler.
func NewHandler(ls Service) *Handler {
	return &Handler{service: ls}
}

type balanceResponse struct {
	CreditsMinutes float64 `json:"credits_minutes"`
	CreditsSeconds float64 `json:"credits_seconds"`
}

type useRequest struct {
	Minutes float64 `json:"minutes" binding:"required,minutes"`
}

type useResponse struct {
	Message   string  `json:"message"`
	Used      float64 `json:"used"`
	Remaining float64 `json:"remaining"`
}

type addRequest struct {
	Minutes     float64 `json:"minutes" binding:"required,minutes"`
	Description string  `json:"description" binding:"max=255"`
}

type addResponse struct {
	Message    string  `json:"message"`
	Added      float64 `json:"added"`
	NewBalance float64 `json:"new_balance"`
}

type historyRequest struct {
	Limit int32 `form:"limit" binding:"omitempty,min=1,max=50"`
}

type entryResponse struct {
	ID          int64            `json:"id"`
	AccountID   int64            `json:"account_id"`
	Amount      float64          `json:"amount"`
	Type        domain.EntryKind `json:"type"`
	Description string           `json:"description"`
	CreatedAt   time.Time        `json:"created_at"`
}

type historyResponse struct {
	History []entryResponse `json:"history"`
}

type insufficientResponse struct {
	Error     string  `json:"error"`
	Available float64 `json:"available"`
	Required  float64 `json:"required"`
}

func newEntryResponse(e domain.Entry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		AccountID:   e.AccountID,
		Amount:      e.Amount.InexactFloat64(),
		Type:        e.Kind,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

func bindError(gctx *gin.Context, err error) {
	zerolog.Ctx(gctx.Request.Context()).Info().Err(err).Send()

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		gctx.JSON(http.StatusBadRequest, web.Response{Error: web.GetErrorMsg(ve)})
		return
	}

	gctx.JSON(http.StatusBadRequest, web.Error(err))
}

func serviceError(gctx *gin.Context, err error) {
	var ibErr *domain.InsufficientBalanceError

	switch {
	case errors.As(err, &ibErr):
		gctx.JSON(http.StatusBadRequest, insufficientResponse{
			Error:     "Insufficient credits",
			Available: ibErr.Available.InexactFloat64(),
			Required:  ibErr.Required.InexactFloat64(),
		})
	case errors.Is(err, domain.ErrInsufficientBalance):
		gctx.JSON(http.StatusBadRequest, web.Response{Error: "Insufficient credits"})
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidLimit):
		gctx.JSON(http.StatusBadRequest, web.Error(err))
	case errors.Is(err, domain.ErrAccountNotFound):
		gctx.JSON(http.StatusNotFound, web.Error(err))
	default:
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
	}
}

// Balance handles http request to get the caller's balance.
func (h *Handler) Balance(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	payload := middleware.Payload(gctx)

	balance, err := h.service.Balance(ctx, payload.AccountID)
	if err != nil {
		serviceError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, balanceResponse{
		CreditsMinutes: balance.InexactFloat64(),
		CreditsSeconds: minutespkg.ToSeconds(balance).InexactFloat64(),
	})
}

// Use handles http request to spend minutes of the caller's account.
func (h *Handler) Use(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req useRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		bindError(gctx, err)
		return
	}

	payload := middleware.Payload(gctx)
	amount := decimal.NewFromFloat(req.Minutes)

	res, err := h.service.Debit(ctx, payload.AccountID, amount, "")
	if err != nil {
		serviceError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, useResponse{
		Message:   "Credits used successfully",
		Used:      amount.InexactFloat64(),
		Remaining: res.Account.Balance.InexactFloat64(),
	})
}

// Add handles http request to top up the caller's account.
func (h *Handler) Add(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req addRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		bindError(gctx, err)
		return
	}

	payload := middleware.Payload(gctx)
	amount := decimal.NewFromFloat(req.Minutes)

	res, err := h.service.Credit(ctx, payload.AccountID, amount, req.Description)
	if err != nil {
		serviceError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, addResponse{
		Message:    "Credits added successfully",
		Added:      amount.InexactFloat64(),
		NewBalance: res.Account.Balance.InexactFloat64(),
	})
}

// History handles http request to list the latest entries of the caller's account.
func (h *Handler) History(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req historyRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		bindError(gctx, err)
		return
	}

	if req.Limit == 0 {
		req.Limit = DefaultHistoryLimit
	}

	payload := middleware.Payload(gctx)

	entries, err := h.service.History(ctx, payload.AccountID, req.Limit)
	if err != nil {
		serviceError(gctx, err)
		return
	}

	res := historyResponse{History: make([]entryResponse, 0, len(entries))}
	for _, e := range entries {
		res.History = append(res.History, newEntryResponse(e))
	}

	gctx.JSON(http.StatusOK, res)
}
