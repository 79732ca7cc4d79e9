// Package wallet exposes the driver wallet surface: provisioning on
// onboarding, balance reads, the movement journal, and manual block/unblock.
package wallet

import (
	"context"

	"github.com/google/uuid"

	"github.com/rutacash/rutacash/internal/ledger"
)

// Service exposes wallet operations backed by the ledger engine.
type Service struct {
	engine ledger.Engine
}

// NewService builds a wallet service instance.
func NewService(engine ledger.Engine) *Service {
	return &Service{engine: engine}
}

// CreateInput captures data required to provision a wallet.
type CreateInput struct {
	DriverID uuid.UUID
	Currency string
}

// Create provisions a wallet for a driver, once, at onboarding. Currency
// defaults to CUP.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Wallet, error) {
	currency := input.Currency
	if currency == "" {
		currency = "CUP"
	}
	return s.engine.CreateWallet(ctx, input.DriverID, currency)
}

// Get returns the driver's wallet.
func (s *Service) Get(ctx context.Context, driverID uuid.UUID) (ledger.Wallet, error) {
	return s.engine.GetWallet(ctx, driverID)
}

// Movements returns the full movement journal, oldest first.
func (s *Service) Movements(ctx context.Context, driverID uuid.UUID) ([]ledger.Movement, error) {
	return s.engine.MovementsForWallet(ctx, driverID)
}

// Block manually blocks the wallet, recording who asked and why. Blocking a
// blocked wallet is a no-op, not an error.
func (s *Service) Block(ctx context.Context, driverID uuid.UUID, reason, performedBy string) (ledger.StatusChange, error) {
	return s.engine.BlockWallet(ctx, driverID, reason, performedBy)
}

// Unblock manually reactivates the wallet.
func (s *Service) Unblock(ctx context.Context, driverID uuid.UUID, performedBy string) (ledger.StatusChange, error) {
	return s.engine.UnblockWallet(ctx, driverID, performedBy)
}
