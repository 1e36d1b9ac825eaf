package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/ledger"
	"webmarcas-backend/internal/models"
)

func TestCreditService_AddAndConsume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := env.credits.Add(ctx, user, 5, "compra", "", "")
	require.NoError(t, err)
	entry, err := env.credits.Consume(ctx, user, 2, "uso", "", "")
	require.NoError(t, err)

	assert.Equal(t, -2, entry.Amount)
	assert.Equal(t, 3, entry.BalanceAfter)
	balance, err := env.credits.GetBalance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 3, balance)
}

func TestCreditService_ConsumeBeyondBalanceLeavesBalanceUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.store.SeedCredits(user, 1)

	_, err := env.credits.Consume(ctx, user, 2, "uso", "", "")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInsufficientCredits)
	assert.Equal(t, 1, env.store.Balance(user))
	assert.Len(t, env.store.Ledger(user), 1)

	// Failing again changes nothing either.
	_, err = env.credits.Consume(ctx, user, 2, "uso", "", "")
	assert.ErrorIs(t, err, apperr.ErrInsufficientCredits)
	assert.Equal(t, 1, env.store.Balance(user))
}

func TestCreditService_IdempotentByReference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	first, err := env.credits.Add(ctx, user, 10, "compra", models.ReferencePayment, "pay_123")
	require.NoError(t, err)
	second, err := env.credits.Add(ctx, user, 10, "compra", models.ReferencePayment, "pay_123")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, env.store.Ledger(user), 1)
	assert.Equal(t, 10, env.store.Balance(user))
}

func TestCreditService_SameReferenceDifferentOperation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.store.SeedCredits(user, 3)

	_, err := env.credits.Consume(ctx, user, 1, "uso", models.ReferenceRegistro, "r1")
	require.NoError(t, err)
	_, err = env.credits.Refund(ctx, user, 1, "estorno", models.ReferenceRegistro, "r1")
	require.NoError(t, err)

	assert.Len(t, env.store.Ledger(user), 3)
	assert.Equal(t, 3, env.store.Balance(user))
}

func TestCreditService_AdjustRequiresActor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := env.credits.Adjust(ctx, uuid.Nil, user, 5, "correção")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = env.credits.Adjust(ctx, uuid.New(), user, 5, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Empty(t, env.store.Ledger(user))
}

func TestCreditService_AdjustRecordsActor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, admin := uuid.New(), uuid.New()
	env.store.SeedCredits(user, 4)

	entry, err := env.credits.Adjust(ctx, admin, user, -3, "correção manual")
	require.NoError(t, err)

	assert.Equal(t, models.OperationAdjust, entry.Operation)
	assert.Equal(t, -3, entry.Amount)
	assert.Equal(t, 1, entry.BalanceAfter)
	assert.True(t, entry.ActorID.Valid)
	assert.Equal(t, admin, entry.ActorID.UUID)

	_, err = env.credits.Adjust(ctx, admin, user, -2, "correção manual")
	assert.ErrorIs(t, err, apperr.ErrInsufficientCredits)
	assert.Equal(t, 1, env.store.Balance(user))
}

func TestCreditService_ExpireIsBoundedByBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.store.SeedCredits(user, 2)

	entry, err := env.credits.Expire(ctx, user, 5, "validade")
	require.NoError(t, err)

	assert.Equal(t, -2, entry.Amount)
	assert.Equal(t, 0, env.store.Balance(user))

	_, err = env.credits.Expire(ctx, user, 1, "validade")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreditService_RejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.credits.Add(ctx, uuid.Nil, 1, "x", "", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = env.credits.Add(ctx, uuid.New(), 0, "x", "", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = env.credits.Apply(ctx, CreditMutation{UserID: uuid.New(), Operation: "BURN", Amount: 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreditService_ReconcileRepairsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.store.SeedCredits(user, 7)
	env.store.SetCachedBalance(user, 2)

	result, err := env.credits.Reconcile(ctx, user)
	require.NoError(t, err)

	assert.True(t, result.Repaired)
	assert.Equal(t, 2, result.CachedBefore)
	assert.Equal(t, 7, result.LedgerSum)
	assert.Equal(t, 7, env.store.Balance(user))
	assert.Len(t, env.store.Ledger(user), 1)

	again, err := env.credits.Reconcile(ctx, user)
	require.NoError(t, err)
	assert.False(t, again.Repaired)
	assert.Len(t, env.store.Ledger(user), 1)
}

func TestCreditService_GetBalanceUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	balance, err := env.credits.GetBalance(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestCreditService_ListEntriesNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	for i := 1; i <= 3; i++ {
		_, err := env.credits.Add(ctx, user, i, fmt.Sprintf("compra %d", i), "", "")
		require.NoError(t, err)
	}

	entries, err := env.credits.ListEntries(ctx, user, 2)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, 6, entries[0].BalanceAfter)
	assert.Equal(t, 3, entries[1].BalanceAfter)
}

// The cached balance equals the ledger sum after any interleaving of
// operations, and every entry's balance_after is the running sum.
func TestCreditService_BalanceMatchesLedgerUnderConcurrency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, admin := uuid.New(), uuid.New()
	env.store.SeedCredits(user, 20)

	ops := []func(r *rand.Rand) error{
		func(r *rand.Rand) error { _, err := env.credits.Add(ctx, user, r.Intn(5)+1, "add", "", ""); return err },
		func(r *rand.Rand) error { _, err := env.credits.Consume(ctx, user, r.Intn(4)+1, "consume", "", ""); return err },
		func(r *rand.Rand) error { _, err := env.credits.Refund(ctx, user, 1, "refund", "", ""); return err },
		func(r *rand.Rand) error { _, err := env.credits.Adjust(ctx, admin, user, r.Intn(7)-3, "adjust"); return err },
		func(r *rand.Rand) error { _, err := env.credits.Expire(ctx, user, r.Intn(3)+1, "expire"); return err },
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 50; i++ {
				// Rejections (insufficient credits, nothing to expire) are expected.
				_ = ops[r.Intn(len(ops))](r)
			}
		}(int64(w))
	}
	wg.Wait()

	entries := env.store.Ledger(user)
	require.NoError(t, ledger.VerifyChain(entries))
	assert.Equal(t, ledger.Sum(entries), env.store.Balance(user))
	assert.GreaterOrEqual(t, env.store.Balance(user), 0)
}
