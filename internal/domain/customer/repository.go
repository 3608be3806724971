package customer

import "context"

// Repository persists customers.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	Update(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id uint) (*Customer, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*Customer, error)
	List(ctx context.Context, page, pageSize int) ([]*Customer, int64, error)
}
