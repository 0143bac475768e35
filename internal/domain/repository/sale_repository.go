package repository

import (
	"context"

	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
)

// SaleRepository lee las ventas finalizadas del PDV con sus ítems y datos de producto.
type SaleRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Sale, error)
}
