package entity

import "time"

// Tipos de certificado digital aceptados por el perfil fiscal.
const (
	CertificateTypeA1 = "A1" // Archivo PKCS#12 (.pfx) almacenado en base64
	CertificateTypeA3 = "A3" // Token/smartcard vía PKCS#11
)

// CRT (Código de Regime Tributário) del emisor.
const (
	CRTSimplesNacional       = 1
	CRTSimplesExcessoReceita = 2
	CRTRegimeNormal          = 3
	CRTSimplesMEI            = 4
)

// EncryptedPrefix marca los campos sensibles cifrados por el vault.
const EncryptedPrefix = "encrypted:"

// FiscalProfile representa el registro fiscal del emisor (empresa que emite NFC-e).
// Solo un perfil está activo a la vez; activar uno nuevo desactiva el anterior.
// Nunca se borra: se reemplaza por un perfil nuevo.
type FiscalProfile struct {
	ID              int64
	CNPJ            string // Solo dígitos (14)
	IE              string // Inscrição Estadual
	IM              string // Inscrição Municipal (opcional)
	LegalName       string // Razão social (xNome)
	TradeName       string // Nome fantasia (xFant)
	Street          string
	Number          string
	Complement      string
	District        string
	CityCode        string // Código IBGE del municipio (7 dígitos)
	CityName        string
	UF              string
	CEP             string
	Phone           string
	CRT             int
	Series          int
	LastNumber      int64  // Último número autorizado en la serie
	Environment     string // producao | homologacao
	ContingencyMode bool   // tpEmis=9 cuando está activo

	CertificateType     string // A1 | A3
	CertificateA1       string // Contenedor PKCS#12 en base64
	CertificatePassword string // encrypted:<token>
	CertificatePin      string // encrypted:<token> (A3)
	PKCS11Library       string // Ruta de la librería del token (A3)
	CSCID               string // Identificador del CSC (por defecto 000001)
	CSCToken            string // encrypted:<token>

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsProduction indica si el perfil emite contra el ambiente de producción.
func (p *FiscalProfile) IsProduction() bool {
	return p.Environment == "producao"
}

// EmissionType devuelve el tpEmis del perfil (1 normal, 9 contingencia offline).
func (p *FiscalProfile) EmissionType() int {
	if p.ContingencyMode {
		return 9
	}
	return 1
}
