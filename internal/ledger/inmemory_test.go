package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rutacash/rutacash/internal/outbox"
)

type stubDirectory struct {
	points map[uuid.UUID]bool
}

func (d stubDirectory) IsActive(_ context.Context, pointID uuid.UUID) (bool, error) {
	active, ok := d.points[pointID]
	if !ok {
		return false, ErrCollectionPointNotFound
	}
	return active, nil
}

type engineFixture struct {
	engine  Engine
	events  *outbox.MemoryStore
	pointID uuid.UUID
	closed  uuid.UUID
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		events:  outbox.NewMemoryStore(),
		pointID: uuid.New(),
		closed:  uuid.New(),
	}
	dir := stubDirectory{points: map[uuid.UUID]bool{f.pointID: true, f.closed: false}}
	f.engine = NewInMemory(dir, f.events)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *engineFixture) newWallet(t *testing.T) uuid.UUID {
	t.Helper()
	driverID := uuid.New()
	_, err := f.engine.CreateWallet(context.Background(), driverID, "CUP")
	require.NoError(t, err)
	return driverID
}

// fund runs a full top-up round trip so balances originate from movements.
func (f *engineFixture) fund(t *testing.T, driverID uuid.UUID, amount string) {
	t.Helper()
	ctx := context.Background()
	res, err := f.engine.CreateCashTopupPending(ctx, TopupInput{
		DriverID:          driverID,
		CollectionPointID: f.pointID,
		CollectedByUserID: uuid.New(),
		Amount:            dec(amount),
		Currency:          "CUP",
	})
	require.NoError(t, err)
	_, err = f.engine.ConfirmCashTopup(ctx, driverID, res.Record.ID)
	require.NoError(t, err)
}

func (f *engineFixture) requireInvariant(t *testing.T, driverID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	w, err := f.engine.GetWallet(ctx, driverID)
	require.NoError(t, err)
	movements, err := f.engine.MovementsForWallet(ctx, driverID)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, m := range movements {
		require.True(t, m.NewBalance.Equal(m.PreviousBalance.Add(m.Amount)),
			"movement %s breaks new = previous + amount", m.ID)
		sum = sum.Add(m.Amount)
	}
	require.True(t, w.CurrentBalance.Equal(sum),
		"balance %s != movement sum %s", w.CurrentBalance, sum)
}

func TestCreateWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := uuid.New()

	w, err := f.engine.CreateWallet(ctx, driverID, "CUP")
	require.NoError(t, err)
	require.Equal(t, WalletActive, w.Status)
	require.True(t, w.CurrentBalance.IsZero())

	_, err = f.engine.CreateWallet(ctx, driverID, "CUP")
	require.ErrorIs(t, err, ErrWalletExists)

	_, err = f.engine.CreateWallet(ctx, uuid.New(), "pesos")
	require.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestCommissionIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)
	f.fund(t, driverID, "50.00")

	in := CommissionInput{
		DriverID:         driverID,
		TripID:           uuid.New(),
		CommissionAmount: dec("10.00"),
		Currency:         "CUP",
	}

	first, err := f.engine.ApplyCashTripCommission(ctx, in)
	require.NoError(t, err)
	require.True(t, first.Wallet.CurrentBalance.Equal(dec("40.00")))
	require.True(t, first.Movement.Amount.Equal(dec("-10.00")))
	require.Equal(t, TxProcessed, first.Transaction.Status)

	second, err := f.engine.ApplyCashTripCommission(ctx, in)
	require.NoError(t, err)
	require.Equal(t, first.Transaction.ID, second.Transaction.ID)
	require.Equal(t, first.Movement.ID, second.Movement.ID)
	require.True(t, second.Wallet.CurrentBalance.Equal(dec("40.00")))

	movements, err := f.engine.MovementsForWallet(ctx, driverID)
	require.NoError(t, err)
	require.Len(t, movements, 2) // top-up credit plus exactly one commission debit
	f.requireInvariant(t, driverID)
}

func TestCommissionConflictOnAmountMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)
	f.fund(t, driverID, "50.00")

	tripID := uuid.New()
	_, err := f.engine.ApplyCashTripCommission(ctx, CommissionInput{
		DriverID: driverID, TripID: tripID,
		CommissionAmount: dec("10.00"), Currency: "CUP",
	})
	require.NoError(t, err)

	_, err = f.engine.ApplyCashTripCommission(ctx, CommissionInput{
		DriverID: driverID, TripID: tripID,
		CommissionAmount: dec("12.00"), Currency: "CUP",
	})
	require.ErrorIs(t, err, ErrConflict)

	w, err := f.engine.GetWallet(ctx, driverID)
	require.NoError(t, err)
	require.True(t, w.CurrentBalance.Equal(dec("40.00")))
}

func TestCommissionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)

	_, err := f.engine.ApplyCashTripCommission(ctx, CommissionInput{
		DriverID: uuid.New(), TripID: uuid.New(),
		CommissionAmount: dec("10.00"), Currency: "CUP",
	})
	require.ErrorIs(t, err, ErrWalletNotFound)

	_, err = f.engine.ApplyCashTripCommission(ctx, CommissionInput{
		DriverID: driverID, TripID: uuid.New(),
		CommissionAmount: dec("10.00"), Currency: "USD",
	})
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = f.engine.ApplyCashTripCommission(ctx, CommissionInput{
		DriverID: driverID, TripID: uuid.New(),
		CommissionAmount: dec("-5.00"), Currency: "CUP",
	})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.engine.ApplyCashTripCommission(ctx, CommissionInput{
		DriverID: driverID, TripID: uuid.New(),
		CommissionAmount: dec("1.999"), Currency: "CUP",
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAutoBlockAndRecover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)

	// Commission against an empty wallet drives it negative and blocks it.
	res, err := f.engine.ApplyCashTripCommission(ctx, CommissionInput{
		DriverID: driverID, TripID: uuid.New(),
		CommissionAmount: dec("10.00"), Currency: "CUP",
	})
	require.NoError(t, err)
	require.True(t, res.Wallet.CurrentBalance.Equal(dec("-10.00")))
	require.Equal(t, WalletBlocked, res.Wallet.Status)

	// Debits are refused while blocked.
	_, err = f.engine.ApplyCashTripCommission(ctx, CommissionInput{
		DriverID: driverID, TripID: uuid.New(),
		CommissionAmount: dec("5.00"), Currency: "CUP",
	})
	require.ErrorIs(t, err, ErrWalletBlocked)

	// A confirmed top-up that restores the balance unblocks the wallet.
	pending, err := f.engine.CreateCashTopupPending(ctx, TopupInput{
		DriverID:          driverID,
		CollectionPointID: f.pointID,
		CollectedByUserID: uuid.New(),
		Amount:            dec("15.00"),
		Currency:          "CUP",
	})
	require.NoError(t, err)
	confirmed, err := f.engine.ConfirmCashTopup(ctx, driverID, pending.Record.ID)
	require.NoError(t, err)
	require.True(t, confirmed.Wallet.CurrentBalance.Equal(dec("5.00")))
	require.Equal(t, WalletActive, confirmed.Wallet.Status)

	f.requireInvariant(t, driverID)
}

func TestCommissionReplayOnBlockedWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)

	in := CommissionInput{
		DriverID: driverID, TripID: uuid.New(),
		CommissionAmount: dec("10.00"), Currency: "CUP",
	}
	first, err := f.engine.ApplyCashTripCommission(ctx, in)
	require.NoError(t, err)
	require.Equal(t, WalletBlocked, first.Wallet.Status)

	// A retry of the applied commission succeeds even though the wallet is
	// now blocked; only new debits are refused.
	second, err := f.engine.ApplyCashTripCommission(ctx, in)
	require.NoError(t, err)
	require.Equal(t, first.Transaction.ID, second.Transaction.ID)
	f.requireInvariant(t, driverID)
}

func TestTopupRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)

	pending, err := f.engine.CreateCashTopupPending(ctx, TopupInput{
		DriverID:          driverID,
		CollectionPointID: f.pointID,
		CollectedByUserID: uuid.New(),
		Amount:            dec("25.00"),
		Currency:          "CUP",
		Notes:             "evening deposit",
	})
	require.NoError(t, err)
	require.Equal(t, CollectionPending, pending.Record.Status)
	require.Equal(t, TxPending, pending.Transaction.Status)
	require.Equal(t, pending.Transaction.ID, pending.Record.TransactionID)

	// The pending record does not move money.
	w, err := f.engine.GetWallet(ctx, driverID)
	require.NoError(t, err)
	require.True(t, w.CurrentBalance.IsZero())

	confirmed, err := f.engine.ConfirmCashTopup(ctx, driverID, pending.Record.ID)
	require.NoError(t, err)
	require.True(t, confirmed.Wallet.CurrentBalance.Equal(dec("25.00")))
	require.Equal(t, CollectionCompleted, confirmed.Record.Status)
	require.True(t, confirmed.Movement.Amount.Equal(dec("25.00")))

	// Confirming again is a no-op returning the same movement.
	again, err := f.engine.ConfirmCashTopup(ctx, driverID, pending.Record.ID)
	require.NoError(t, err)
	require.Equal(t, confirmed.Movement.ID, again.Movement.ID)
	require.True(t, again.Wallet.CurrentBalance.Equal(dec("25.00")))

	f.requireInvariant(t, driverID)
}

func TestTopupPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)

	base := TopupInput{
		DriverID:          driverID,
		CollectionPointID: f.pointID,
		CollectedByUserID: uuid.New(),
		Amount:            dec("10.00"),
		Currency:          "CUP",
	}

	in := base
	in.CollectionPointID = f.closed
	_, err := f.engine.CreateCashTopupPending(ctx, in)
	require.ErrorIs(t, err, ErrCollectionPointInactive)

	in = base
	in.CollectionPointID = uuid.New()
	_, err = f.engine.CreateCashTopupPending(ctx, in)
	require.ErrorIs(t, err, ErrCollectionPointNotFound)

	in = base
	in.DriverID = uuid.New()
	_, err = f.engine.CreateCashTopupPending(ctx, in)
	require.ErrorIs(t, err, ErrWalletNotFound)

	in = base
	in.Currency = "USD"
	_, err = f.engine.CreateCashTopupPending(ctx, in)
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestConfirmCompletedWithoutMovementIsInconsistency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)

	pending, err := f.engine.CreateCashTopupPending(ctx, TopupInput{
		DriverID:          driverID,
		CollectionPointID: f.pointID,
		CollectedByUserID: uuid.New(),
		Amount:            dec("10.00"),
		Currency:          "CUP",
	})
	require.NoError(t, err)
	_, err = f.engine.ConfirmCashTopup(ctx, driverID, pending.Record.ID)
	require.NoError(t, err)

	// Corrupt the journal the way a partial failure would: the record is
	// COMPLETED but its movement is gone.
	mem := f.engine.(*memoryEngine)
	mem.mu.Lock()
	delete(mem.movements, pending.Transaction.ID)
	mem.mu.Unlock()

	_, err = f.engine.ConfirmCashTopup(ctx, driverID, pending.Record.ID)
	var inconsistency *InconsistencyError
	require.ErrorAs(t, err, &inconsistency)
	require.Equal(t, pending.Record.ID, inconsistency.ID)
}

func TestConcurrentCommissionRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)
	f.fund(t, driverID, "100.00")

	in := CommissionInput{
		DriverID: driverID, TripID: uuid.New(),
		CommissionAmount: dec("10.00"), Currency: "CUP",
	}

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.ApplyCashTripCommission(ctx, in); err != nil {
				t.Errorf("commission failed: %v", err)
			}
		}()
	}
	wg.Wait()

	movements, err := f.engine.MovementsForWallet(ctx, driverID)
	require.NoError(t, err)

	debits := 0
	for _, m := range movements {
		if m.Amount.IsNegative() {
			debits++
		}
	}
	require.Equal(t, 1, debits, "exactly one commission movement must exist")

	w, err := f.engine.GetWallet(ctx, driverID)
	require.NoError(t, err)
	require.True(t, w.CurrentBalance.Equal(dec("90.00")))
	f.requireInvariant(t, driverID)
}

func TestConcurrentDistinctTripsKeepInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)
	f.fund(t, driverID, "500.00")

	const trips = 20
	var wg sync.WaitGroup
	for i := 0; i < trips; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.engine.ApplyCashTripCommission(ctx, CommissionInput{
				DriverID: driverID, TripID: uuid.New(),
				CommissionAmount: dec("5.00"), Currency: "CUP",
			})
			if err != nil {
				t.Errorf("trip %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	w, err := f.engine.GetWallet(ctx, driverID)
	require.NoError(t, err)
	require.True(t, w.CurrentBalance.Equal(dec("400.00")))
	f.requireInvariant(t, driverID)
}

func TestChargeCreateOrGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := ChargeInput{
		OrderID:     uuid.New(),
		TripID:      uuid.New(),
		PassengerID: uuid.New(),
		DriverID:    uuid.New(),
		GrossAmount: dec("100.00"),
		Commission:  dec("10.00"),
		NetAmount:   dec("90.00"),
		Currency:    "CUP",
	}

	first, err := f.engine.CreateOrGetChargeForOrder(ctx, in)
	require.NoError(t, err)
	require.Equal(t, TypeCharge, first.Type)
	require.Equal(t, TxProcessed, first.Status)

	second, err := f.engine.CreateOrGetChargeForOrder(ctx, in)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	in.GrossAmount = dec("120.00")
	_, err = f.engine.CreateOrGetChargeForOrder(ctx, in)
	require.ErrorIs(t, err, ErrConflict)
}

func TestRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)
	f.fund(t, driverID, "80.00")

	in := RefundInput{
		OrderID:  uuid.New(),
		DriverID: driverID,
		Amount:   dec("30.00"),
		Currency: "CUP",
		Reason:   "trip cancelled after pickup",
	}

	first, err := f.engine.CreateRefund(ctx, in)
	require.NoError(t, err)
	require.True(t, first.Wallet.CurrentBalance.Equal(dec("50.00")))

	second, err := f.engine.CreateRefund(ctx, in)
	require.NoError(t, err)
	require.Equal(t, first.Movement.ID, second.Movement.ID)
	require.True(t, second.Wallet.CurrentBalance.Equal(dec("50.00")))

	in.Amount = dec("31.00")
	_, err = f.engine.CreateRefund(ctx, in)
	require.ErrorIs(t, err, ErrConflict)

	f.requireInvariant(t, driverID)
}

func TestManualBlockUnblock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)

	change, err := f.engine.BlockWallet(ctx, driverID, "fraud review", "ops-1")
	require.NoError(t, err)
	require.True(t, change.Changed)
	require.Equal(t, WalletActive, change.PreviousStatus)

	// Redundant block is not an error and writes nothing.
	change, err = f.engine.BlockWallet(ctx, driverID, "fraud review", "ops-1")
	require.NoError(t, err)
	require.False(t, change.Changed)

	change, err = f.engine.UnblockWallet(ctx, driverID, "ops-2")
	require.NoError(t, err)
	require.True(t, change.Changed)
	require.Equal(t, WalletBlocked, change.PreviousStatus)

	_, err = f.engine.BlockWallet(ctx, uuid.New(), "x", "ops-1")
	require.ErrorIs(t, err, ErrWalletNotFound)
}

func TestEventsEmittedOnlyOnSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)
	f.fund(t, driverID, "50.00")

	before := len(f.events.All())

	tripID := uuid.New()
	_, err := f.engine.ApplyCashTripCommission(ctx, CommissionInput{
		DriverID: driverID, TripID: tripID,
		CommissionAmount: dec("10.00"), Currency: "CUP",
	})
	require.NoError(t, err)
	afterSuccess := len(f.events.All())
	require.Greater(t, afterSuccess, before)

	_, err = f.engine.ApplyCashTripCommission(ctx, CommissionInput{
		DriverID: driverID, TripID: tripID,
		CommissionAmount: dec("99.00"), Currency: "CUP",
	})
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, afterSuccess, len(f.events.All()), "rejected operation must not emit events")
}

func seedPaidOrder(f *engineFixture, driverID uuid.UUID, fee string) Order {
	order := Order{
		ID:               uuid.New(),
		TripID:           uuid.New(),
		DriverID:         driverID,
		PassengerID:      uuid.New(),
		FareAmount:       dec("50.00"),
		CommissionAmount: dec(fee),
		Currency:         "CUP",
		Status:           OrderPaid,
	}
	SeedOrder(f.engine, order)
	return order
}

func TestAdjustCommissionPenalty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)
	f.fund(t, driverID, "50.00")
	order := seedPaidOrder(f, driverID, "5.00")

	newFee := dec("7.00")
	adj, err := f.engine.AdjustCommission(ctx, AdjustmentInput{
		OrderID: order.ID,
		Seq:     1,
		NewFee:  &newFee,
		Reason:  "distance recalculated",
	})
	require.NoError(t, err)
	require.True(t, adj.DeltaFee.Equal(dec("2.00")))
	require.True(t, adj.OriginalFee.Equal(dec("5.00")))
	require.True(t, adj.NewFee.Equal(dec("7.00")))
	require.NotNil(t, adj.TransactionID)

	w, err := f.engine.GetWallet(ctx, driverID)
	require.NoError(t, err)
	require.True(t, w.CurrentBalance.Equal(dec("48.00")))

	// Identical retry returns the witness without a second debit.
	again, err := f.engine.AdjustCommission(ctx, AdjustmentInput{
		OrderID: order.ID,
		Seq:     1,
		NewFee:  &newFee,
		Reason:  "distance recalculated",
	})
	require.NoError(t, err)
	require.Equal(t, adj.ID, again.ID)

	w, err = f.engine.GetWallet(ctx, driverID)
	require.NoError(t, err)
	require.True(t, w.CurrentBalance.Equal(dec("48.00")))
	f.requireInvariant(t, driverID)
}

func TestAdjustCommissionBonusAndStacking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)
	f.fund(t, driverID, "50.00")
	order := seedPaidOrder(f, driverID, "5.00")

	newFee := dec("7.00")
	_, err := f.engine.AdjustCommission(ctx, AdjustmentInput{
		OrderID: order.ID, Seq: 1, NewFee: &newFee, Reason: "recalculated",
	})
	require.NoError(t, err)

	// The second adjustment sees 7.00 as the fee on record.
	lower := dec("6.00")
	adj, err := f.engine.AdjustCommission(ctx, AdjustmentInput{
		OrderID: order.ID, Seq: 2, NewFee: &lower, Reason: "customer goodwill",
	})
	require.NoError(t, err)
	require.True(t, adj.OriginalFee.Equal(dec("7.00")))
	require.True(t, adj.DeltaFee.Equal(dec("-1.00")))

	w, err := f.engine.GetWallet(ctx, driverID)
	require.NoError(t, err)
	require.True(t, w.CurrentBalance.Equal(dec("49.00"))) // 50 - 2 + 1
	f.requireInvariant(t, driverID)
}

func TestAdjustCommissionZeroDeltaWitness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)
	order := seedPaidOrder(f, driverID, "5.00")

	same := dec("5.00")
	adj, err := f.engine.AdjustCommission(ctx, AdjustmentInput{
		OrderID: order.ID, Seq: 1, NewFee: &same, Reason: "audit confirmed",
	})
	require.NoError(t, err)
	require.True(t, adj.DeltaFee.IsZero())
	require.Nil(t, adj.TransactionID)

	movements, err := f.engine.MovementsForWallet(ctx, driverID)
	require.NoError(t, err)
	require.Empty(t, movements)

	again, err := f.engine.AdjustCommission(ctx, AdjustmentInput{
		OrderID: order.ID, Seq: 1, NewFee: &same, Reason: "audit confirmed",
	})
	require.NoError(t, err)
	require.Equal(t, adj.ID, again.ID)
}

func TestAdjustCommissionGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)

	delta := dec("2.00")
	_, err := f.engine.AdjustCommission(ctx, AdjustmentInput{
		OrderID: uuid.New(), Seq: 1, DeltaFee: &delta,
	})
	require.ErrorIs(t, err, ErrOrderNotFound)

	order := seedPaidOrder(f, driverID, "5.00")

	_, err = f.engine.AdjustCommission(ctx, AdjustmentInput{OrderID: order.ID, Seq: 1})
	require.ErrorIs(t, err, ErrInvalidAdjustment)

	limit := dec("1.00")
	_, err = f.engine.AdjustCommission(ctx, AdjustmentInput{
		OrderID: order.ID, Seq: 1, DeltaFee: &delta, MaxAbsDelta: &limit,
	})
	require.ErrorIs(t, err, ErrDeltaExceedsThreshold)

	cancelled := seedPaidOrder(f, driverID, "5.00")
	cancelled.Status = OrderCancelled
	SeedOrder(f.engine, cancelled)
	_, err = f.engine.AdjustCommission(ctx, AdjustmentInput{
		OrderID: cancelled.ID, Seq: 1, DeltaFee: &delta,
	})
	require.ErrorIs(t, err, ErrInvalidOrderStatus)

	// Penalties are debits and honor the blocked state.
	_, err = f.engine.BlockWallet(ctx, driverID, "review", "ops")
	require.NoError(t, err)
	_, err = f.engine.AdjustCommission(ctx, AdjustmentInput{
		OrderID: order.ID, Seq: 1, DeltaFee: &delta,
	})
	require.ErrorIs(t, err, ErrWalletBlocked)
}

func TestConcurrentAdjustmentsSameSeq(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driverID := f.newWallet(t)
	f.fund(t, driverID, "50.00")
	order := seedPaidOrder(f, driverID, "5.00")

	delta := dec("2.00")
	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.AdjustCommission(ctx, AdjustmentInput{
				OrderID: order.ID, Seq: 1, DeltaFee: &delta,
				Reason: fmt.Sprintf("attempt %d", i),
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	w, err := f.engine.GetWallet(ctx, driverID)
	require.NoError(t, err)
	require.True(t, w.CurrentBalance.Equal(dec("48.00")), "delta applied exactly once")
	f.requireInvariant(t, driverID)
}
