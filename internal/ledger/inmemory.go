package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rutacash/rutacash/internal/outbox"
)

type adjustmentKey struct {
	orderID uuid.UUID
	seq     int32
}

// memoryEngine holds the full ledger state behind one mutex. It exists for
// unit tests and for running the API without a database in development mode;
// the validation order of every operation matches the Postgres engine.
type memoryEngine struct {
	mu           sync.Mutex
	wallets      map[uuid.UUID]*Wallet // keyed by driver ID
	transactions map[uuid.UUID]*Transaction
	txOrder      []uuid.UUID
	movements    map[uuid.UUID]*Movement // keyed by transaction ID
	records      map[uuid.UUID]*CollectionRecord
	adjustments  map[adjustmentKey]*Adjustment
	orders       map[uuid.UUID]*Order
	points       CollectionPointDirectory
	outbox       *outbox.MemoryStore
}

// NewInMemory creates a concurrency-safe in-memory engine. The outbox store
// may be nil when no consumer cares about events.
func NewInMemory(points CollectionPointDirectory, events *outbox.MemoryStore) Engine {
	return &memoryEngine{
		wallets:      make(map[uuid.UUID]*Wallet),
		transactions: make(map[uuid.UUID]*Transaction),
		movements:    make(map[uuid.UUID]*Movement),
		records:      make(map[uuid.UUID]*CollectionRecord),
		adjustments:  make(map[adjustmentKey]*Adjustment),
		orders:       make(map[uuid.UUID]*Order),
		points:       points,
		outbox:       events,
	}
}

func (e *memoryEngine) emit(events ...outbox.Event) {
	if e.outbox != nil {
		e.outbox.Enqueue(events)
	}
}

func (e *memoryEngine) CreateWallet(_ context.Context, driverID uuid.UUID, currency string) (Wallet, error) {
	if len(currency) != 3 {
		return Wallet{}, ErrInvalidCurrency
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.wallets[driverID]; exists {
		return Wallet{}, ErrWalletExists
	}

	now := time.Now().UTC()
	w := &Wallet{
		ID:                   uuid.New(),
		DriverID:             driverID,
		CurrentBalance:       decimal.Zero,
		HeldBalance:          decimal.Zero,
		TotalEarnedFromTrips: decimal.Zero,
		Currency:             currency,
		Status:               WalletActive,
		LastUpdated:          now,
		CreatedAt:            now,
	}
	e.wallets[driverID] = w
	return *w, nil
}

func (e *memoryEngine) GetWallet(_ context.Context, driverID uuid.UUID) (Wallet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.wallets[driverID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return *w, nil
}

func (e *memoryEngine) MovementsForWallet(_ context.Context, driverID uuid.UUID) ([]Movement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.wallets[driverID]
	if !ok {
		return nil, ErrWalletNotFound
	}

	var out []Movement
	for _, txID := range e.txOrder {
		if m, ok := e.movements[txID]; ok && m.WalletID == w.ID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (e *memoryEngine) ApplyCashTripCommission(_ context.Context, in CommissionInput) (SettlementResult, error) {
	if err := ValidateAmount(in.CommissionAmount); err != nil {
		return SettlementResult{}, err
	}
	if in.GrossAmount != nil {
		if err := ValidateAmount(*in.GrossAmount); err != nil {
			return SettlementResult{}, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.wallets[in.DriverID]
	if !ok {
		return SettlementResult{}, ErrWalletNotFound
	}
	if err := ValidateCurrency(*w, in.Currency); err != nil {
		return SettlementResult{}, err
	}

	tripID := in.TripID
	driverID := in.DriverID
	tx := e.findTransaction(func(t *Transaction) bool {
		return t.Type == TypePlatformCommission &&
			t.TripID != nil && *t.TripID == tripID &&
			t.FromUser != nil && *t.FromUser == driverID
	})

	if tx != nil {
		if !sameAmount(tx.NetAmount, in.CommissionAmount) || tx.Currency != in.Currency {
			return SettlementResult{}, ErrConflict
		}
		if m, ok := e.movements[tx.ID]; ok {
			// Idempotent replay: the commission was fully applied before.
			return SettlementResult{Wallet: *w, Movement: *m, Transaction: *tx}, nil
		}
		// The transaction exists but its movement does not: a prior attempt
		// crashed between the two inserts. Finish the job.
	} else {
		// The blocked check only guards new debits; replays and crash
		// recovery of an already-committed transaction proceed.
		if w.Blocked() {
			return SettlementResult{}, ErrWalletBlocked
		}
		gross := in.CommissionAmount
		if in.GrossAmount != nil {
			gross = *in.GrossAmount
		}
		now := time.Now().UTC()
		tx = &Transaction{
			ID:                uuid.New(),
			Type:              TypePlatformCommission,
			Status:            TxProcessed,
			TripID:            &tripID,
			FromUser:          &driverID,
			GrossAmount:       gross,
			PlatformFeeAmount: in.CommissionAmount,
			NetAmount:         in.CommissionAmount,
			Currency:          in.Currency,
			Description:       "platform commission for cash trip",
			ProcessedAt:       &now,
			CreatedAt:         now,
		}
		e.insertTransaction(tx)
	}

	updated, m := BuildMovement(*w, tx.ID, in.CommissionAmount.Neg(), "cash trip commission")
	if in.GrossAmount != nil {
		updated.TotalEarnedFromTrips = updated.TotalEarnedFromTrips.Add(*in.GrossAmount)
	}
	*w = updated
	e.movements[tx.ID] = &m

	e.emit(walletUpdatedEvent(*w), transactionProcessedEvent(*tx))
	return SettlementResult{Wallet: *w, Movement: m, Transaction: *tx}, nil
}

func (e *memoryEngine) CreateOrGetChargeForOrder(_ context.Context, in ChargeInput) (Transaction, error) {
	if err := ValidateAmount(in.GrossAmount); err != nil {
		return Transaction{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	orderID := in.OrderID
	if tx := e.findTransaction(func(t *Transaction) bool {
		return t.Type == TypeCharge && t.OrderID != nil && *t.OrderID == orderID
	}); tx != nil {
		if !sameAmount(tx.GrossAmount, in.GrossAmount) ||
			!sameAmount(tx.PlatformFeeAmount, in.Commission) ||
			!sameAmount(tx.NetAmount, in.NetAmount) ||
			tx.Currency != in.Currency {
			return Transaction{}, ErrConflict
		}
		return *tx, nil
	}

	tripID := in.TripID
	passengerID := in.PassengerID
	driverID := in.DriverID
	now := time.Now().UTC()
	tx := &Transaction{
		ID:                uuid.New(),
		Type:              TypeCharge,
		Status:            TxProcessed,
		OrderID:           &orderID,
		TripID:            &tripID,
		FromUser:          &passengerID,
		ToUser:            &driverID,
		GrossAmount:       in.GrossAmount,
		PlatformFeeAmount: in.Commission,
		NetAmount:         in.NetAmount,
		Currency:          in.Currency,
		Description:       "cash charge for order",
		ProcessedAt:       &now,
		CreatedAt:         now,
	}
	e.insertTransaction(tx)

	e.emit(transactionProcessedEvent(*tx))
	return *tx, nil
}

func (e *memoryEngine) CreateRefund(_ context.Context, in RefundInput) (SettlementResult, error) {
	if err := ValidateAmount(in.Amount); err != nil {
		return SettlementResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.wallets[in.DriverID]
	if !ok {
		return SettlementResult{}, ErrWalletNotFound
	}
	if err := ValidateCurrency(*w, in.Currency); err != nil {
		return SettlementResult{}, err
	}

	orderID := in.OrderID
	tx := e.findTransaction(func(t *Transaction) bool {
		return t.Type == TypeRefund && t.OrderID != nil && *t.OrderID == orderID
	})

	if tx != nil {
		if !sameAmount(tx.NetAmount, in.Amount) || tx.Currency != in.Currency {
			return SettlementResult{}, ErrConflict
		}
		if m, ok := e.movements[tx.ID]; ok {
			return SettlementResult{Wallet: *w, Movement: *m, Transaction: *tx}, nil
		}
	} else {
		if w.Blocked() {
			return SettlementResult{}, ErrWalletBlocked
		}
		driverID := in.DriverID
		now := time.Now().UTC()
		desc := in.Reason
		if desc == "" {
			desc = "cash refund for order"
		}
		tx = &Transaction{
			ID:          uuid.New(),
			Type:        TypeRefund,
			Status:      TxProcessed,
			OrderID:     &orderID,
			FromUser:    &driverID,
			GrossAmount: in.Amount,
			NetAmount:   in.Amount,
			Currency:    in.Currency,
			Description: desc,
			ProcessedAt: &now,
			CreatedAt:   now,
		}
		e.insertTransaction(tx)
	}

	updated, m := BuildMovement(*w, tx.ID, in.Amount.Neg(), "refund to passenger")
	*w = updated
	e.movements[tx.ID] = &m

	e.emit(walletUpdatedEvent(*w), transactionProcessedEvent(*tx))
	return SettlementResult{Wallet: *w, Movement: m, Transaction: *tx}, nil
}

func (e *memoryEngine) CreateCashTopupPending(ctx context.Context, in TopupInput) (TopupResult, error) {
	if err := ValidateAmount(in.Amount); err != nil {
		return TopupResult{}, err
	}

	active, err := e.points.IsActive(ctx, in.CollectionPointID)
	if err != nil {
		return TopupResult{}, err
	}
	if !active {
		return TopupResult{}, ErrCollectionPointInactive
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.wallets[in.DriverID]
	if !ok {
		return TopupResult{}, ErrWalletNotFound
	}
	// A blocked wallet may still receive top-ups; that is how it recovers.
	if err := ValidateCurrency(*w, in.Currency); err != nil {
		return TopupResult{}, err
	}

	driverID := in.DriverID
	collectorID := in.CollectedByUserID
	now := time.Now().UTC()
	tx := &Transaction{
		ID:          uuid.New(),
		Type:        TypeWalletTopup,
		Status:      TxPending,
		FromUser:    &collectorID,
		ToUser:      &driverID,
		GrossAmount: in.Amount,
		NetAmount:   in.Amount,
		Currency:    in.Currency,
		Description: "cash top-up at collection point",
		CreatedAt:   now,
	}
	e.insertTransaction(tx)

	rec := &CollectionRecord{
		ID:                uuid.New(),
		DriverID:          in.DriverID,
		CollectionPointID: in.CollectionPointID,
		CollectedByUserID: in.CollectedByUserID,
		Amount:            in.Amount,
		Currency:          in.Currency,
		Status:            CollectionPending,
		TransactionID:     tx.ID,
		Notes:             in.Notes,
		CreatedAt:         now,
	}
	e.records[rec.ID] = rec

	return TopupResult{Record: *rec, Transaction: *tx}, nil
}

func (e *memoryEngine) ConfirmCashTopup(_ context.Context, driverID, recordID uuid.UUID) (ConfirmResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.records[recordID]
	if !ok || rec.DriverID != driverID {
		return ConfirmResult{}, ErrRecordNotFound
	}

	w, ok := e.wallets[driverID]
	if !ok {
		return ConfirmResult{}, ErrWalletNotFound
	}

	if rec.Status == CollectionCompleted {
		m, ok := e.movements[rec.TransactionID]
		if !ok {
			return ConfirmResult{}, &InconsistencyError{
				Entity: "collection_record",
				ID:     rec.ID,
				Detail: "completed without a wallet movement",
			}
		}
		return ConfirmResult{Wallet: *w, Movement: *m, Record: *rec}, nil
	}

	tx, ok := e.transactions[rec.TransactionID]
	if !ok {
		return ConfirmResult{}, &InconsistencyError{
			Entity: "collection_record",
			ID:     rec.ID,
			Detail: "missing linked top-up transaction",
		}
	}

	// The credited amount is re-derived from the record, not from the request.
	updated, m := BuildMovement(*w, tx.ID, rec.Amount, "confirmed cash collection")
	*w = updated
	e.movements[tx.ID] = &m

	now := time.Now().UTC()
	tx.Status = TxProcessed
	tx.ProcessedAt = &now
	rec.Status = CollectionCompleted
	rec.CompletedAt = &now

	e.emit(walletUpdatedEvent(*w), transactionProcessedEvent(*tx), collectionCompletedEvent(*rec))
	return ConfirmResult{Wallet: *w, Movement: m, Record: *rec}, nil
}

func (e *memoryEngine) BlockWallet(_ context.Context, driverID uuid.UUID, reason, performedBy string) (StatusChange, error) {
	return e.setStatus(driverID, WalletBlocked, reason, performedBy)
}

func (e *memoryEngine) UnblockWallet(_ context.Context, driverID uuid.UUID, performedBy string) (StatusChange, error) {
	return e.setStatus(driverID, WalletActive, "", performedBy)
}

func (e *memoryEngine) setStatus(driverID uuid.UUID, target WalletStatus, reason, performedBy string) (StatusChange, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.wallets[driverID]
	if !ok {
		return StatusChange{}, ErrWalletNotFound
	}

	change := StatusChange{
		DriverID:       driverID,
		PreviousStatus: w.Status,
		Status:         target,
	}
	if w.Status == target {
		return change, nil
	}

	w.Status = target
	w.LastUpdated = time.Now().UTC()
	change.Changed = true

	e.emit(walletStatusChangedEvent(*w, reason, performedBy))
	return change, nil
}

func (e *memoryEngine) AdjustCommission(_ context.Context, in AdjustmentInput) (Adjustment, error) {
	if in.DeltaFee == nil && in.NewFee == nil {
		return Adjustment{}, ErrInvalidAdjustment
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[in.OrderID]
	if !ok {
		return Adjustment{}, ErrOrderNotFound
	}
	if order.Status != OrderPaid {
		return Adjustment{}, ErrInvalidOrderStatus
	}

	key := adjustmentKey{orderID: in.OrderID, seq: in.Seq}
	if adj, exists := e.adjustments[key]; exists {
		return *adj, nil
	}

	originalFee := e.originalFeeLocked(*order)
	var delta decimal.Decimal
	if in.DeltaFee != nil {
		delta = *in.DeltaFee
	} else {
		delta = in.NewFee.Sub(originalFee)
	}
	if !delta.Equal(delta.Round(2)) {
		return Adjustment{}, ErrInvalidAmount
	}
	if in.MaxAbsDelta != nil && delta.Abs().GreaterThan(*in.MaxAbsDelta) {
		return Adjustment{}, ErrDeltaExceedsThreshold
	}

	now := time.Now().UTC()
	adj := &Adjustment{
		ID:          uuid.New(),
		OrderID:     in.OrderID,
		Seq:         in.Seq,
		DeltaFee:    delta,
		OriginalFee: originalFee,
		NewFee:      originalFee.Add(delta),
		Reason:      in.Reason,
		CreatedAt:   now,
	}

	// A zero delta is still recorded: the witness row is what makes retries
	// of the identical request idempotent.
	if delta.IsZero() {
		e.adjustments[key] = adj
		e.emit(commissionAdjustedEvent(*adj))
		return *adj, nil
	}

	orderID := in.OrderID
	seq := in.Seq
	tx := e.findTransaction(func(t *Transaction) bool {
		return t.AdjustmentSeq != nil && *t.AdjustmentSeq == seq &&
			t.OrderID != nil && *t.OrderID == orderID
	})

	w, ok := e.wallets[order.DriverID]
	if !ok {
		return Adjustment{}, ErrWalletNotFound
	}
	if err := ValidateCurrency(*w, order.Currency); err != nil {
		return Adjustment{}, err
	}

	if tx == nil {
		if w.Blocked() {
			return Adjustment{}, ErrWalletBlocked
		}
		txType := TypePenalty
		if delta.IsNegative() {
			txType = TypeBonus
		}
		driverID := order.DriverID
		tx = &Transaction{
			ID:            uuid.New(),
			Type:          txType,
			Status:        TxProcessed,
			OrderID:       &orderID,
			TripID:        &order.TripID,
			FromUser:      &driverID,
			GrossAmount:   delta.Abs(),
			NetAmount:     delta.Abs(),
			Currency:      order.Currency,
			Description:   "commission adjustment",
			AdjustmentSeq: &seq,
			ProcessedAt:   &now,
			CreatedAt:     now,
		}
		e.insertTransaction(tx)
	} else if !sameAmount(tx.NetAmount, delta.Abs()) {
		// The same (order, seq) was attempted before with a different delta.
		return Adjustment{}, ErrConflict
	}

	if _, ok := e.movements[tx.ID]; !ok {
		// The wallet debit for a penalty is negative, the bonus credit positive.
		amount := delta.Neg()
		updated, m := BuildMovement(*w, tx.ID, amount, "commission adjustment")
		*w = updated
		e.movements[tx.ID] = &m
	}

	txID := tx.ID
	adj.TransactionID = &txID
	e.adjustments[key] = adj

	e.emit(walletUpdatedEvent(*w), transactionProcessedEvent(*tx), commissionAdjustedEvent(*adj))
	return *adj, nil
}

// originalFeeLocked derives the commission currently on record for the order:
// the charge's platform fee (falling back to the trip commission transaction,
// then to the order itself) plus every previously applied adjustment delta.
func (e *memoryEngine) originalFeeLocked(order Order) decimal.Decimal {
	fee := order.CommissionAmount

	if tx := e.findTransaction(func(t *Transaction) bool {
		return t.Type == TypeCharge && t.OrderID != nil && *t.OrderID == order.ID
	}); tx != nil {
		fee = tx.PlatformFeeAmount
	} else if tx := e.findTransaction(func(t *Transaction) bool {
		return t.Type == TypePlatformCommission &&
			t.TripID != nil && *t.TripID == order.TripID &&
			t.FromUser != nil && *t.FromUser == order.DriverID
	}); tx != nil {
		fee = tx.NetAmount
	}

	var adjs []*Adjustment
	for key, adj := range e.adjustments {
		if key.orderID == order.ID {
			adjs = append(adjs, adj)
		}
	}
	sort.Slice(adjs, func(i, j int) bool { return adjs[i].Seq < adjs[j].Seq })
	for _, adj := range adjs {
		fee = fee.Add(adj.DeltaFee)
	}
	return fee
}

func (e *memoryEngine) insertTransaction(tx *Transaction) {
	e.transactions[tx.ID] = tx
	e.txOrder = append(e.txOrder, tx.ID)
}

func (e *memoryEngine) findTransaction(match func(*Transaction) bool) *Transaction {
	for _, id := range e.txOrder {
		if tx := e.transactions[id]; match(tx) {
			return tx
		}
	}
	return nil
}
