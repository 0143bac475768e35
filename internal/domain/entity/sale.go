package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale es la venta finalizada del PDV que origina la NFC-e.
// Es de solo lectura para el módulo fiscal.
type Sale struct {
	ID             int64
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	PaymentMethod  string // CASH, DEBIT, CREDIT, PIX, INSTALLMENT
	PaymentDetails string // JSON libre (amountPaid, change, ...)
	CPF            string // CPF del comprador (opcional)
	CustomerName   string // Vacío si la venta no tiene cliente vinculado
	Status         string
	Items          []SaleItem
	CreatedAt      time.Time
}

// SaleItem es una línea de la venta con los datos fiscales del producto.
type SaleItem struct {
	ID          int64
	ProductID   int64 // 0 cuando la línea no referencia un producto
	ProductCode string
	Barcode     string
	NCM         string
	Unit        string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}
