// Package userdelivery manages delivery layer of users.
package userdelivery

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
	"github.com/go-petr/minutes-ledger/pkg/configpkg"
	"github.com/go-petr/minutes-ledger/pkg/errorspkg"
	"github.com/go-petr/minutes-ledger/pkg/tokenpkg"
	"github.com/go-petr/minutes-ledger/pkg/web"
)

// ErrInvalidCredentials is returned for both unknown emails and wrong passwords.
var ErrInvalidCredentials = errors.New("Invalid email or password")

// Service provides service layer interface needed by user delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package userdelivery
type Service interface {
	Create(ctx context.Context, email, password string) (domain.User, error)
	CheckPassword(ctx context.Context, email, password string) (domain.User, error)
}

// AccountService opens and looks up the credit account of a user.
type AccountService interface {
	CreateAccount(ctx context.Context, owner string, initialBalance decimal.Decimal) (domain.Account, error)
	GetByOwner(ctx context.Context, owner string) (domain.Account, error)
}

// Handler facilitates user delivery layer logic.
type Handler struct {
	service       Service
	accounts      AccountService
	tokenMaker    tokenpkg.Maker
	tokenDuration time.Duration
	freeTrial     decimal.Decimal
}

// NewHandler returns user handler.
func NewHandler(us Service, as AccountService, tm tokenpkg.Maker, config configpkg.Config) *Handler {
	return &Handler{
		service:       us,
		accounts:      as,
		tokenMaker:    tm,
		tokenDuration: config.AccessTokenDuration,
		freeTrial:     decimal.NewFromFloat(config.FreeTrialMinutes),
	}
}

type userResponse struct {
	Email          string  `json:"email"`
	AccountID      int64   `json:"account_id"`
	CreditsMinutes float64 `json:"credits_minutes"`
}

type authResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
	Token   string       `json:"token"`
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

// ownerAccount returns the account of the user, opening it with the free trial
// balance if the user has none yet.
func (h *Handler) ownerAccount(ctx context.Context, email string) (domain.Account, error) {
	account, err := h.accounts.GetByOwner(ctx, email)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return account, err
	}

	account, err = h.accounts.CreateAccount(ctx, email, h.freeTrial)
	if errors.Is(err, domain.ErrAccountAlreadyExists) {
		return h.accounts.GetByOwner(ctx, email)
	}

	return account, err
}

func (h *Handler) respond(gctx *gin.Context, status int, message string, email string) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	account, err := h.ownerAccount(ctx, email)
	if err != nil {
		l.Error().Err(err).Str("email", email).Msg("cannot open credit account")
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	token, _, err := h.tokenMaker.CreateToken(email, account.ID, h.tokenDuration)
	if err != nil {
		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(status, authResponse{
		Message: message,
		User: userResponse{
			Email:          email,
			AccountID:      account.ID,
			CreditsMinutes: account.Balance.InexactFloat64(),
		},
		Token: token,
	})
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// Register handles http request to create a user together with the credit account.
func (h *Handler) Register(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req registerRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		bindError(gctx, err)
		return
	}

	user, err := h.service.Create(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyExists) {
			gctx.JSON(http.StatusConflict, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	h.respond(gctx, http.StatusCreated, "User registered successfully", user.Email)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles http login request and returns user data with an access token.
func (h *Handler) Login(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req loginRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		bindError(gctx, err)
		return
	}

	user, err := h.service.CheckPassword(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrWrongPassword) {
			gctx.JSON(http.StatusUnauthorized, web.Error(ErrInvalidCredentials))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	h.respond(gctx, http.StatusOK, "Login successful", user.Email)
}
