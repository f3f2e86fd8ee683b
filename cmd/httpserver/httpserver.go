// Package httpserver manages server creation and api routing.
package httpserver

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/go-petr/minutes-ledger/internal/ledgerdelivery"
	"github.com/go-petr/minutes-ledger/internal/ledgerrepo"
	"github.com/go-petr/minutes-ledger/internal/ledgerservice"
	"github.com/go-petr/minutes-ledger/internal/middleware"
	"github.com/go-petr/minutes-ledger/internal/userdelivery"
	"github.com/go-petr/minutes-ledger/internal/userrepo"
	"github.com/go-petr/minutes-ledger/internal/userservice"
	"github.com/go-petr/minutes-ledger/pkg/configpkg"
	"github.com/go-petr/minutes-ledger/pkg/dbpkg"
	"github.com/go-petr/minutes-ledger/pkg/minutespkg"
	"github.com/go-petr/minutes-ledger/pkg/tokenpkg"
)

// Server holds db connection, handlers router and configuration.
type Server struct {
	DB     *sql.DB
	Engine *gin.Engine
	Config configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

func newRepos(conn *sql.DB, driver string) (userservice.Repo, ledgerservice.Repo) {
	if dbpkg.IsPostgres(driver) {
		return userrepo.NewRepoPGS(conn), ledgerrepo.NewRepoPGS(conn)
	}

	return userrepo.NewRepoSQLite(conn), ledgerrepo.NewRepoSQLite(conn)
}

// New creates Server type with instantiated domains and routes.
func New(conn *sql.DB, logger zerolog.Logger, config configpkg.Config, publisher ledgerservice.Publisher) (*Server, error) {
	userRepo, ledgerRepo := newRepos(conn, config.DBDriver)

	tokenMaker, err := tokenpkg.New(config.TokenType, config.TokenSymmetricKey)
	if err != nil {
		return nil, errors.New("cannot create token maker")
	}

	userService := userservice.New(userRepo)
	ledgerService := ledgerservice.New(ledgerRepo, publisher)

	userHandler := userdelivery.NewHandler(userService, ledgerService, tokenMaker, config)
	ledgerHandler := ledgerdelivery.NewHandler(ledgerService)

	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	engine.POST("/auth/register", userHandler.Register)
	engine.POST("/auth/login", userHandler.Login)

	creditRoutes := engine.Group("/credits").Use(middleware.AuthMiddleware(tokenMaker))

	creditRoutes.GET("/balance", ledgerHandler.Balance)
	creditRoutes.POST("/use", ledgerHandler.Use)
	creditRoutes.POST("/add", ledgerHandler.Add)
	creditRoutes.GET("/history", ledgerHandler.History)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		err := v.RegisterValidation("minutes", minutespkg.ValidMinutes)
		if err != nil {
			return nil, errors.New("cannot register minutes validator")
		}
	}

	server := &Server{
		DB:     conn,
		Engine: engine,
		Config: config,
	}

	return server, nil
}
