package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del ciclo de vida de una NFC-e emitida.
const (
	DocumentStatusProcessing = "PROCESSING" // Enviada o por enviar, sin respuesta definitiva
	DocumentStatusAuthorized = "AUTHORIZED" // Autorizada por la SEFAZ (cStat 100)
	DocumentStatusRejected   = "REJECTED"   // Rechazada por la SEFAZ
	DocumentStatusError      = "ERROR"      // Sin determinación de la SEFAZ
)

// ModelNFCe es el modelo fiscal de la NFC-e.
const ModelNFCe = "65"

// IssuedDocument es el registro persistido de un intento de emisión.
// A lo sumo un documento por venta. Inmutable una vez AUTHORIZED salvo las rutas de artefactos.
type IssuedDocument struct {
	ID            int64
	SaleID        int64
	ProfileID     int64
	Number        int64
	Series        int
	Model         string
	AccessKey     string // 44 dígitos
	RandomCode    int64  // cNF
	EmissionType  int    // tpEmis
	Contingency   bool
	Status        string // ver constantes DocumentStatus*
	StatusCode    string // cStat devuelto por la SEFAZ (999 = sin conexión)
	StatusMessage string // xMotivo
	Protocol      string // nProt
	AuthorizedAt  *time.Time
	XMLSent       string // XML firmado con infNFeSupl (enviado a la SEFAZ)
	XMLResponse   string // protNFe devuelto
	XMLFull       string // nfeProc (NFe + protNFe)
	TotalValue    decimal.Decimal
	ProductsValue decimal.Decimal
	DiscountValue decimal.Decimal
	RecipientCPF  string
	RecipientName string
	XMLPath       string
	PDFPath       string
	Items         []IssuedDocumentItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsFinal indica si la SEFAZ ya se pronunció sobre el documento.
func (d *IssuedDocument) IsFinal() bool {
	return d.Status == DocumentStatusAuthorized || d.Status == DocumentStatusRejected
}

// IssuedDocumentItem replica la línea de la venta tal como se declaró en el XML,
// independiente de cambios posteriores en el catálogo.
type IssuedDocumentItem struct {
	ID          int64
	DocumentID  int64
	ItemNumber  int
	ProductCode string
	EAN         string
	Description string
	NCM         string
	CFOP        string
	Unit        string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}
