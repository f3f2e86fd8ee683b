package userrepo

import (
	"context"
	"time"

	"github.com/go-petr/minutes-ledger/internal/domain"
	"github.com/go-petr/minutes-ledger/pkg/dbpkg"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// RepoSQLite facilitates user repository layer logic on SQLite.
type RepoSQLite struct {
	db dbpkg.SQLInterface
}

// NewRepoSQLite returns user RepoSQLite.
func NewRepoSQLite(db dbpkg.SQLInterface) *RepoSQLite {
	return &RepoSQLite{
		db: db,
	}
}

const sqliteCreateQuery = `
INSERT INTO users (email, hashed_password, created_at)
VALUES (?, ?, ?)
`

// Create creates the user and then returns it.
func (r *RepoSQLite) Create(ctx context.Context, email, hashedPassword string) (domain.User, error) {
	l := zerolog.Ctx(ctx)

	u := domain.User{
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      time.Now().UTC(),
	}

	if _, err := r.db.ExecContext(ctx, sqliteCreateQuery, u.Email, u.HashedPassword, u.CreatedAt); err != nil {
		l.Error().Err(errors.WithStack(err)).Send()
		return domain.User{}, createErr(err)
	}

	return u, nil
}

const sqliteGetQuery = `
SELECT email, hashed_password, created_at
FROM users
WHERE email = ?
`

// Get returns the user with the given email.
func (r *RepoSQLite) Get(ctx context.Context, email string) (domain.User, error) {
	return get(ctx, r.db, sqliteGetQuery, email)
}
