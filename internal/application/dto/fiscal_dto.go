package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// FiscalConfigRequest body para POST /api/fiscal/config.
// Los campos sensibles llegan en claro y se guardan cifrados.
type FiscalConfigRequest struct {
	CNPJ            string `json:"cnpj"`
	IE              string `json:"ie"`
	IM              string `json:"im,omitempty"`
	LegalName       string `json:"legal_name"`
	TradeName       string `json:"trade_name,omitempty"`
	Street          string `json:"street"`
	Number          string `json:"number"`
	Complement      string `json:"complement,omitempty"`
	District        string `json:"district"`
	CityCode        string `json:"city_code"`
	CityName        string `json:"city_name"`
	UF              string `json:"uf"`
	CEP             string `json:"cep"`
	Phone           string `json:"phone,omitempty"`
	CRT             int    `json:"crt"`
	Series          int    `json:"series"`
	LastNumber      int64  `json:"last_number"`
	Environment     string `json:"environment"` // producao | homologacao
	ContingencyMode bool   `json:"contingency_mode"`

	CertificateType     string `json:"certificate_type"`               // A1 | A3
	CertificateA1       string `json:"certificate_a1,omitempty"`       // .pfx en base64
	CertificatePassword string `json:"certificate_password,omitempty"` // A1
	CertificatePin      string `json:"certificate_pin,omitempty"`      // A3
	PKCS11Library       string `json:"pkcs11_library,omitempty"`       // A3
	CSCID               string `json:"csc_id,omitempty"`               // por defecto 000001
	CSCToken            string `json:"csc_token"`
}

// FiscalConfigResponse perfil activo sin secretos.
type FiscalConfigResponse struct {
	ID                int64     `json:"id"`
	CNPJ              string    `json:"cnpj"`
	IE                string    `json:"ie"`
	IM                string    `json:"im,omitempty"`
	LegalName         string    `json:"legal_name"`
	TradeName         string    `json:"trade_name,omitempty"`
	Street            string    `json:"street"`
	Number            string    `json:"number"`
	Complement        string    `json:"complement,omitempty"`
	District          string    `json:"district"`
	CityCode          string    `json:"city_code"`
	CityName          string    `json:"city_name"`
	UF                string    `json:"uf"`
	CEP               string    `json:"cep"`
	Phone             string    `json:"phone,omitempty"`
	CRT               int       `json:"crt"`
	Series            int       `json:"series"`
	LastNumber        int64     `json:"last_number"`
	Environment       string    `json:"environment"`
	ContingencyMode   bool      `json:"contingency_mode"`
	CertificateType   string    `json:"certificate_type"`
	PKCS11Library     string    `json:"pkcs11_library,omitempty"`
	CSCID             string    `json:"csc_id"`
	HasCertificate    bool      `json:"has_certificate"`
	HasCertificatePin bool      `json:"has_certificate_pin"`
	HasCSCToken       bool      `json:"has_csc_token"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CertificateTestRequest body opcional de POST /api/fiscal/config/test-certificate.
// Vacío = prueba el certificado del perfil activo.
type CertificateTestRequest struct {
	CertificateA1       string `json:"certificate_a1,omitempty"`
	CertificatePassword string `json:"certificate_password,omitempty"`
}

// CertificateTestResponse datos del certificado y resultado de la validación contra el CNPJ.
type CertificateTestResponse struct {
	CommonName   string    `json:"common_name"`
	Organization string    `json:"organization,omitempty"`
	CNPJ         string    `json:"cnpj,omitempty"`
	IssuerName   string    `json:"issuer_name,omitempty"`
	IssuerOrg    string    `json:"issuer_organization,omitempty"`
	SerialNumber string    `json:"serial_number"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidTo      time.Time `json:"valid_to"`
	IsValid      bool      `json:"is_valid"`
	MatchesCNPJ  bool      `json:"matches_cnpj"`
	Error        string    `json:"error,omitempty"`
}

// EmitRequest body para POST /api/fiscal/emit.
type EmitRequest struct {
	SaleID int64 `json:"sale_id"`
}

// DocumentFilterRequest query de GET /api/fiscal/documents.
type DocumentFilterRequest struct {
	Status string `query:"status"`
	PageRequest
}

// DocumentItemResponse línea declarada en la NFC-e.
type DocumentItemResponse struct {
	ItemNumber  int             `json:"item_number"`
	ProductCode string          `json:"product_code"`
	EAN         string          `json:"ean,omitempty"`
	Description string          `json:"description"`
	NCM         string          `json:"ncm"`
	CFOP        string          `json:"cfop"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// DocumentResponse NFC-e emitida (sin el contenido XML).
type DocumentResponse struct {
	ID            int64                  `json:"id"`
	SaleID        int64                  `json:"sale_id"`
	Number        int64                  `json:"number"`
	Series        int                    `json:"series"`
	Model         string                 `json:"model"`
	AccessKey     string                 `json:"access_key"`
	FormattedKey  string                 `json:"formatted_key"`
	EmissionType  int                    `json:"emission_type"`
	Contingency   bool                   `json:"contingency"`
	Status        string                 `json:"status"`
	StatusCode    string                 `json:"status_code,omitempty"`
	StatusMessage string                 `json:"status_message,omitempty"`
	Protocol      string                 `json:"protocol,omitempty"`
	AuthorizedAt  *time.Time             `json:"authorized_at,omitempty"`
	TotalValue    decimal.Decimal        `json:"total_value"`
	ProductsValue decimal.Decimal        `json:"products_value"`
	DiscountValue decimal.Decimal        `json:"discount_value"`
	RecipientCPF  string                 `json:"recipient_cpf,omitempty"`
	RecipientName string                 `json:"recipient_name,omitempty"`
	HasXML        bool                   `json:"has_xml"`
	HasPDF        bool                   `json:"has_pdf"`
	Items         []DocumentItemResponse `json:"items,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// DocumentListResponse página de documentos.
type DocumentListResponse struct {
	Items []DocumentResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// ConsultResponse resultado de NFeConsultaProtocolo4 para un documento.
type ConsultResponse struct {
	DocumentID     int64      `json:"document_id"`
	AccessKey      string     `json:"access_key"`
	Status         string     `json:"status"`
	Message        string     `json:"message"`
	ProtStatus     string     `json:"prot_status,omitempty"`
	ProtMessage    string     `json:"prot_message,omitempty"`
	Protocol       string     `json:"protocol,omitempty"`
	AuthorizedAt   *time.Time `json:"authorized_at,omitempty"`
	DocumentStatus string     `json:"document_status"`
}

// SefazStatusResponse resultado de NFeStatusServico4.
type SefazStatusResponse struct {
	Online      bool   `json:"online"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	UF          string `json:"uf"`
	Environment string `json:"environment"`
}

// ReconcileResponse resumen de un barrido de documentos en PROCESSING.
type ReconcileResponse struct {
	Checked    int `json:"checked"`
	Authorized int `json:"authorized"`
	Rejected   int `json:"rejected"`
	Errored    int `json:"errored"`
	Pending    int `json:"pending"`
}
