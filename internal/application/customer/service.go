// Package customer contains the customer-facing application service.
package customer

import (
	"context"
	"errors"

	"dropcode/internal/domain/customer"
	"dropcode/internal/shared/logger"
)

// Service resolves and administers customers.
type Service struct {
	customerRepo customer.Repository
	logger       logger.Interface
}

func NewService(customerRepo customer.Repository, log logger.Interface) *Service {
	return &Service{
		customerRepo: customerRepo,
		logger:       log.Named("customer"),
	}
}

// ResolveOrRegister returns the customer for a messaging-platform user
// id, registering them on first contact.
func (s *Service) ResolveOrRegister(ctx context.Context, telegramID int64) (*customer.Customer, error) {
	existing, err := s.customerRepo.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, customer.ErrCustomerNotFound) {
		return nil, err
	}

	c, err := customer.NewCustomer(telegramID)
	if err != nil {
		return nil, err
	}
	if err := s.customerRepo.Create(ctx, c); err != nil {
		// A concurrent first contact may have won the insert.
		if again, gerr := s.customerRepo.GetByTelegramID(ctx, telegramID); gerr == nil {
			return again, nil
		}
		return nil, err
	}

	s.logger.Infow("customer registered", "customer_id", c.ID(), "telegram_id", telegramID)
	return c, nil
}

// SetBlocked applies the administrative block flag.
func (s *Service) SetBlocked(ctx context.Context, customerID uint, blocked bool) (*customer.Customer, error) {
	c, err := s.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if blocked {
		c.Block()
	} else {
		c.Unblock()
	}
	if err := s.customerRepo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Infow("customer block flag updated", "customer_id", customerID, "blocked", blocked)
	return c, nil
}

// AwaitAssetChoice parks the customer on asset selection for a plan.
func (s *Service) AwaitAssetChoice(ctx context.Context, telegramID int64, planID uint) error {
	c, err := s.customerRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	if err := c.AwaitAssetChoice(planID); err != nil {
		return err
	}
	return s.customerRepo.Update(ctx, c)
}

// AwaitTrackingID parks the customer on tracking-number entry.
func (s *Service) AwaitTrackingID(ctx context.Context, telegramID int64) error {
	c, err := s.customerRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	c.AwaitTrackingID()
	return s.customerRepo.Update(ctx, c)
}

// ClearAwaitingInput consumes any pending conversational state.
func (s *Service) ClearAwaitingInput(ctx context.Context, telegramID int64) error {
	c, err := s.customerRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return err
	}
	c.ClearAwaitingInput()
	return s.customerRepo.Update(ctx, c)
}
