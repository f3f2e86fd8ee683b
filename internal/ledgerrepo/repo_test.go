package ledgerrepo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-petr/minutes-ledger/internal/domain"
	"github.com/go-petr/minutes-ledger/pkg/errorspkg"
	"github.com/go-petr/minutes-ledger/pkg/randompkg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledgerRepo is implemented by RepoPGS and RepoSQLite.
type ledgerRepo interface {
	Create(ctx context.Context, owner string, initialBalance decimal.Decimal) (domain.Account, error)
	Get(ctx context.Context, id int64) (domain.Account, error)
	GetByOwner(ctx context.Context, owner string) (domain.Account, error)
	Apply(ctx context.Context, arg domain.ApplyEntryParams) (domain.LedgerTxResult, error)
	ListEntries(ctx context.Context, accountID int64, limit int32) ([]domain.Entry, error)
}

type userRepo interface {
	Create(ctx context.Context, email, hashedPassword string) (domain.User, error)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()

	w := decimal.RequireFromString(want)
	require.Truef(t, w.Equal(got), "got %s, want %s", got, w)
}

func createRandomAccount(t *testing.T, repo ledgerRepo, users userRepo, initial string) domain.Account {
	t.Helper()

	ctx := context.Background()

	user, err := users.Create(ctx, randompkg.Email(), randompkg.String(60))
	require.NoError(t, err)

	account, err := repo.Create(ctx, user.Email, decimal.RequireFromString(initial))
	require.NoError(t, err)

	require.NotZero(t, account.ID)
	require.Equal(t, user.Email, account.Owner)
	requireDecimal(t, initial, account.Balance)
	require.NotZero(t, account.CreatedAt)
	require.NotZero(t, account.UpdatedAt)

	return account
}

func debit(accountID int64, amount string) domain.ApplyEntryParams {
	return domain.ApplyEntryParams{
		AccountID:   accountID,
		Amount:      decimal.RequireFromString(amount).Neg(),
		Kind:        domain.KindDebit,
		Description: "Used " + amount + " minute(s)",
	}
}

func credit(accountID int64, amount string) domain.ApplyEntryParams {
	return domain.ApplyEntryParams{
		AccountID:   accountID,
		Amount:      decimal.RequireFromString(amount),
		Kind:        domain.KindCredit,
		Description: "Added " + amount + " minute(s)",
	}
}

// requireConsistent checks that the balance equals the sum of all entries.
func requireConsistent(t *testing.T, repo ledgerRepo, accountID int64) {
	t.Helper()

	ctx := context.Background()

	account, err := repo.Get(ctx, accountID)
	require.NoError(t, err)

	entries, err := repo.ListEntries(ctx, accountID, 1_000_000)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}

	require.Truef(t, sum.Equal(account.Balance), "sum(entries) = %s, balance = %s", sum, account.Balance)
	require.False(t, account.Balance.IsNegative())
}

func testCreate(t *testing.T, repo ledgerRepo, users userRepo) {
	ctx := context.Background()

	account := createRandomAccount(t, repo, users, "30")

	entries, err := repo.ListEntries(ctx, account.ID, 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	requireDecimal(t, "30", entries[0].Amount)
	require.Equal(t, domain.KindCredit, entries[0].Kind)
	require.Equal(t, domain.WelcomeCreditsDescription, entries[0].Description)
	require.Equal(t, account.ID, entries[0].AccountID)

	// One account per owner.
	_, err = repo.Create(ctx, account.Owner, decimal.NewFromInt(30))
	require.ErrorIs(t, err, domain.ErrAccountAlreadyExists)

	got, err := repo.GetByOwner(ctx, account.Owner)
	require.NoError(t, err)
	requireDecimal(t, "30", got.Balance)

	_, err = repo.Create(ctx, randompkg.Email(), decimal.NewFromInt(30))
	require.ErrorIs(t, err, domain.ErrOwnerNotFound)

	empty := createRandomAccount(t, repo, users, "0")

	entries, err = repo.ListEntries(ctx, empty.ID, 50)
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func testGet(t *testing.T, repo ledgerRepo, users userRepo) {
	ctx := context.Background()

	account := createRandomAccount(t, repo, users, "12.5")

	got, err := repo.Get(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, account.ID, got.ID)
	require.Equal(t, account.Owner, got.Owner)
	requireDecimal(t, "12.5", got.Balance)

	got, err = repo.GetByOwner(ctx, account.Owner)
	require.NoError(t, err)
	require.Equal(t, account.ID, got.ID)

	_, err = repo.Get(ctx, account.ID+1_000_000)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = repo.GetByOwner(ctx, randompkg.Email())
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func testApply(t *testing.T, repo ledgerRepo, users userRepo) {
	ctx := context.Background()

	account := createRandomAccount(t, repo, users, "30")

	res, err := repo.Apply(ctx, debit(account.ID, "10"))
	require.NoError(t, err)
	requireDecimal(t, "20", res.Account.Balance)
	requireDecimal(t, "-10", res.Entry.Amount)
	require.Equal(t, domain.KindDebit, res.Entry.Kind)
	require.Equal(t, "Used 10 minute(s)", res.Entry.Description)
	require.NotZero(t, res.Entry.ID)
	require.NotZero(t, res.Entry.CreatedAt)

	entries, err := repo.ListEntries(ctx, account.ID, 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	requireDecimal(t, "-10", entries[0].Amount)
	requireDecimal(t, "30", entries[1].Amount)

	_, err = repo.Apply(ctx, debit(account.ID, "25"))

	var ibErr *domain.InsufficientBalanceError
	require.True(t, errors.As(err, &ibErr))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	requireDecimal(t, "20", ibErr.Available)
	requireDecimal(t, "25", ibErr.Required)

	got, err := repo.Get(ctx, account.ID)
	require.NoError(t, err)
	requireDecimal(t, "20", got.Balance)

	entries, err = repo.ListEntries(ctx, account.ID, 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Debiting the whole balance is allowed.
	res, err = repo.Apply(ctx, debit(account.ID, "20"))
	require.NoError(t, err)
	require.True(t, res.Account.Balance.IsZero())

	_, err = repo.Apply(ctx, debit(account.ID+1_000_000, "1"))
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	requireConsistent(t, repo, account.ID)
}

func testCreditThenDebit(t *testing.T, repo ledgerRepo, users userRepo) {
	ctx := context.Background()

	account := createRandomAccount(t, repo, users, "7.25")

	_, err := repo.Apply(ctx, credit(account.ID, "0.0001"))
	require.NoError(t, err)

	res, err := repo.Apply(ctx, debit(account.ID, "0.0001"))
	require.NoError(t, err)
	requireDecimal(t, "7.25", res.Account.Balance)

	entries, err := repo.ListEntries(ctx, account.ID, 50)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, domain.KindDebit, entries[0].Kind)
	require.Equal(t, domain.KindCredit, entries[1].Kind)
	require.Greater(t, entries[0].ID, entries[1].ID)

	requireConsistent(t, repo, account.ID)
}

func testConcurrentDebits(t *testing.T, repo ledgerRepo, users userRepo) {
	ctx := context.Background()

	account := createRandomAccount(t, repo, users, "30")

	var wg sync.WaitGroup

	errs := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := repo.Apply(ctx, debit(account.ID, "20"))
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	var succeeded, rejected int

	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, rejected)

	got, err := repo.Get(ctx, account.ID)
	require.NoError(t, err)
	requireDecimal(t, "10", got.Balance)

	requireConsistent(t, repo, account.ID)
}

func testConcurrentMixed(t *testing.T, repo ledgerRepo, users userRepo) {
	ctx := context.Background()

	account := createRandomAccount(t, repo, users, "5")

	const n = 10

	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()

			_, err := repo.Apply(ctx, credit(account.ID, "1.5"))
			assert.NoError(t, err)
		}()

		go func() {
			defer wg.Done()

			_, err := repo.Apply(ctx, debit(account.ID, "2"))
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
			}
		}()
	}

	wg.Wait()

	requireConsistent(t, repo, account.ID)
}

func testListEntries(t *testing.T, repo ledgerRepo, users userRepo) {
	ctx := context.Background()

	account := createRandomAccount(t, repo, users, "0")

	const n = 60

	var last domain.Entry

	for i := 0; i < n; i++ {
		res, err := repo.Apply(ctx, credit(account.ID, "1"))
		require.NoError(t, err)

		last = res.Entry
	}

	entries, err := repo.ListEntries(ctx, account.ID, 50)
	require.NoError(t, err)
	require.Len(t, entries, 50)

	require.Equal(t, last.ID, entries[0].ID)

	for i := 1; i < len(entries); i++ {
		require.False(t, entries[i].CreatedAt.After(entries[i-1].CreatedAt))
		require.Less(t, entries[i].ID, entries[i-1].ID)
	}

	got, err := repo.Get(ctx, account.ID)
	require.NoError(t, err)
	requireDecimal(t, "60", got.Balance)

	_, err = repo.ListEntries(ctx, account.ID+1_000_000, 50)
	require.NoError(t, err)
}

// testApplyRollsBack makes every entry insert fail after rejectEntries is called
// and checks that the balance update of the same transaction is undone.
func testApplyRollsBack(t *testing.T, repo ledgerRepo, users userRepo, rejectEntries func(t *testing.T)) {
	ctx := context.Background()

	account := createRandomAccount(t, repo, users, "30")

	rejectEntries(t)

	_, err := repo.Apply(ctx, debit(account.ID, "10"))
	require.ErrorIs(t, err, errorspkg.ErrInternal)

	_, err = repo.Apply(ctx, credit(account.ID, "5"))
	require.ErrorIs(t, err, errorspkg.ErrInternal)

	got, err := repo.Get(ctx, account.ID)
	require.NoError(t, err)
	requireDecimal(t, "30", got.Balance)
	require.Equal(t, account.UpdatedAt.Unix(), got.UpdatedAt.Unix())

	entries, err := repo.ListEntries(ctx, account.ID, 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.WelcomeCreditsDescription, entries[0].Description)

	requireConsistent(t, repo, account.ID)
}

func testLargeBalance(t *testing.T, repo ledgerRepo, users userRepo) {
	ctx := context.Background()

	account := createRandomAccount(t, repo, users, "30")

	res, err := repo.Apply(ctx, credit(account.ID, "1000000000000000000.0001"))
	require.NoError(t, err)
	requireDecimal(t, "1000000000000000030.0001", res.Account.Balance)

	res, err = repo.Apply(ctx, debit(account.ID, "0.0001"))
	require.NoError(t, err)
	requireDecimal(t, "1000000000000000030", res.Account.Balance)

	requireConsistent(t, repo, account.ID)
}
