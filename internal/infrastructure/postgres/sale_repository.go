package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	"github.com/jhoicas/nfce-emissor/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

// SaleRepo lee las ventas del PDV (tablas sales, sale_items, products, customers).
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

// GetByID devuelve la venta con sus ítems o nil, nil si no existe.
func (r *SaleRepo) GetByID(ctx context.Context, id int64) (*entity.Sale, error) {
	const q = `
		SELECT s.id, s.subtotal, s.discount, s.total, s.payment_method,
		       COALESCE(s.payment_details, ''), COALESCE(s.cpf, ''), COALESCE(c.name, ''),
		       s.status, s.created_at
		FROM sales s
		LEFT JOIN customers c ON c.id = s.customer_id
		WHERE s.id = $1`
	var s entity.Sale
	err := r.q.QueryRow(ctx, q, id).Scan(
		&s.ID, &s.Subtotal, &s.Discount, &s.Total, &s.PaymentMethod,
		&s.PaymentDetails, &s.CPF, &s.CustomerName,
		&s.Status, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	const qi = `
		SELECT si.id, COALESCE(si.product_id, 0),
		       COALESCE(p.code, ''), COALESCE(p.barcode, ''), COALESCE(p.ncm, ''), COALESCE(p.unit, ''),
		       si.description, si.quantity, si.unit_price, si.subtotal
		FROM sale_items si
		LEFT JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = $1
		ORDER BY si.id`
	rows, err := r.q.Query(ctx, qi, id)
	if err != nil {
		return nil, fmt.Errorf("list sale_items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.SaleItem
		if err := rows.Scan(
			&it.ID, &it.ProductID, &it.ProductCode, &it.Barcode, &it.NCM, &it.Unit,
			&it.Description, &it.Quantity, &it.UnitPrice, &it.Subtotal,
		); err != nil {
			return nil, fmt.Errorf("scan sale_item: %w", err)
		}
		s.Items = append(s.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sale_items: %w", err)
	}
	return &s, nil
}
