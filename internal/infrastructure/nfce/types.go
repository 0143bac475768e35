// Package nfce genera el XML de la NFC-e (modelo 65, layout 4.00), el bloque
// infNFeSupl con el QR Code y se comunica con los web services de la SEFAZ.
package nfce

import (
	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
)

// Namespace y versión del layout NF-e/NFC-e.
const (
	NsNFe         = "http://www.portalfiscal.inf.br/nfe"
	LayoutVersion = "4.00"
	xmlDecl       = `<?xml version="1.0" encoding="UTF-8"?>`
)

// Valores fijos del documento.
const (
	NatOpSale      = "VENDA"
	CFOPSale       = "5102" // Venda de mercadoria adquirida de terceiros
	DefaultNCM     = "00000000"
	DefaultUnit    = "UN"
	NoGTIN         = "SEM GTIN"
	DefaultCSCID   = "000001"
	CountryBrazil  = "1058"
	CountryName    = "BRASIL"
	NonContributor = "9" // indIEDest: não contribuinte
)

// BuildInput reúne los datos necesarios para construir el XML sin firmar.
type BuildInput struct {
	Sale       *entity.Sale
	Profile    *entity.FiscalProfile
	Number     int64
	AccessKey  string
	RandomCode int64
}

// BuilderOptions parametriza los textos fijos del emisor.
type BuilderOptions struct {
	SoftwareVersion string // verProc
	InfCplPrefix    string // prefijo de infAdic/infCpl
	Regimes         *RegimeRegistry
}
