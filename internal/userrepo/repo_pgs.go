// Package userrepo manages repository layer of users.
package userrepo

import (
	"context"
	"database/sql"

	"github.com/go-petr/minutes-ledger/internal/domain"
	"github.com/go-petr/minutes-ledger/pkg/dbpkg"
	"github.com/go-petr/minutes-ledger/pkg/errorspkg"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates user repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns user RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

// CreateQuery inserts into users table.
const CreateQuery = `
INSERT INTO users (
    email,
    hashed_password
) VALUES (
    $1, $2
) RETURNING email, hashed_password, created_at
`

// Create creates the user and then returns it.
func (r *RepoPGS) Create(ctx context.Context, email, hashedPassword string) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, CreateQuery, email, hashedPassword)

	var u domain.User

	err := row.Scan(
		&u.Email,
		&u.HashedPassword,
		&u.CreatedAt,
	)

	if err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return domain.User{}, createErr(err)
	}

	return u, nil
}

const getQuery = `
SELECT 
	email, 
	hashed_password, 
	created_at 
FROM users
WHERE email = $1
`

// Get returns the user with the given email.
func (r *RepoPGS) Get(ctx context.Context, email string) (domain.User, error) {
	return get(ctx, r.db, getQuery, email)
}

func get(ctx context.Context, db dbpkg.SQLInterface, query, email string) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	row := db.QueryRowContext(ctx, query, email)

	var u domain.User

	err := row.Scan(
		&u.Email,
		&u.HashedPassword,
		&u.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			l.Info().Err(err).Send()
			return u, domain.ErrUserNotFound
		}

		l.Error().Err(errors.WithStack(err)).Send()

		return u, errorspkg.ErrInternal
	}

	return u, nil
}

func createErr(err error) error {
	switch name, _ := dbpkg.ConstraintViolation(err); name {
	case "users_pkey", "users.email":
		return domain.ErrEmailAlreadyExists
	}

	return errorspkg.ErrInternal
}
