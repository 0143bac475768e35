package fiscal

import "strings"

// =============================================================================
// Meios de pagamento (tPag, NT 2020.006)
// =============================================================================

// Métodos de pago del PDV.
const (
	PaymentCash        = "CASH"
	PaymentDebit       = "DEBIT"
	PaymentCredit      = "CREDIT"
	PaymentPix         = "PIX"
	PaymentInstallment = "INSTALLMENT"
)

// Códigos tPag.
const (
	TPagCash   = "01"
	TPagCheque = "02"
	TPagCredit = "03"
	TPagDebit  = "04"
	TPagPix    = "17"
	TPagNone   = "00"
	TPagOthers = "99"
)

var paymentCodes = map[string]string{
	PaymentCash:        TPagCash,
	PaymentDebit:       TPagDebit,
	PaymentCredit:      TPagCredit,
	PaymentPix:         TPagPix,
	PaymentInstallment: TPagNone,
}

var paymentLabels = map[string]string{
	TPagCash:   "Dinheiro",
	TPagCheque: "Cheque",
	TPagCredit: "Cartão de Crédito",
	TPagDebit:  "Cartão de Débito",
	TPagPix:    "PIX",
	TPagNone:   "Sem Pagamento",
	TPagOthers: "Outros",
}

// PaymentCode traduce el método de pago del PDV al tPag. Desconocido => 99 (Outros).
func PaymentCode(method string) string {
	if c, ok := paymentCodes[strings.ToUpper(strings.TrimSpace(method))]; ok {
		return c
	}
	return TPagOthers
}

// PaymentLabel texto para la DANFE a partir del tPag.
func PaymentLabel(tPag string) string {
	if l, ok := paymentLabels[tPag]; ok {
		return l
	}
	return paymentLabels[TPagOthers]
}

// =============================================================================
// Unidades federativas (código IBGE)
// =============================================================================

var ufCodes = map[string]int{
	"RO": 11, "AC": 12, "AM": 13, "RR": 14, "PA": 15, "AP": 16, "TO": 17,
	"MA": 21, "PI": 22, "CE": 23, "RN": 24, "PB": 25, "PE": 26, "AL": 27, "SE": 28, "BA": 29,
	"MG": 31, "ES": 32, "RJ": 33, "SP": 35,
	"PR": 41, "SC": 42, "RS": 43,
	"MS": 50, "MT": 51, "GO": 52, "DF": 53,
}

var ufByCode = func() map[int]string {
	m := make(map[int]string, len(ufCodes))
	for uf, c := range ufCodes {
		m[c] = uf
	}
	return m
}()

// UFCode devuelve el código IBGE de la UF y false si la sigla no existe.
func UFCode(uf string) (int, bool) {
	c, ok := ufCodes[strings.ToUpper(strings.TrimSpace(uf))]
	return c, ok
}

// UFFromCode devuelve la sigla a partir del código IBGE.
func UFFromCode(code int) (string, bool) {
	uf, ok := ufByCode[code]
	return uf, ok
}

// =============================================================================
// Ambiente y códigos de estado SEFAZ (cStat)
// =============================================================================

// Ambientes del perfil fiscal (tpAmb).
const (
	EnvironmentProduction   = "producao"
	EnvironmentHomologation = "homologacao"
)

// TpAmb devuelve "1" para producción y "2" para homologación.
func TpAmb(environment string) string {
	if environment == EnvironmentProduction {
		return "1"
	}
	return "2"
}

// Códigos cStat relevantes.
const (
	StatusAuthorized      = "100" // Autorizado o uso da NF-e
	StatusBatchProcessed  = "104" // Lote processado
	StatusDenied          = "110" // Uso denegado
	StatusServiceRunning  = "107" // Serviço em operação
	StatusServiceStopped  = "108" // Serviço paralisado momentaneamente
	StatusServiceDown     = "109" // Serviço paralisado sem previsão
	StatusNotFound        = "217" // NF-e não consta na base de dados da SEFAZ
	StatusConnectionError = "999" // código interno: sin respuesta de la SEFAZ
)

var statusMessages = map[string]string{
	StatusAuthorized:      "Autorizado o uso da NF-e",
	StatusBatchProcessed:  "Lote processado",
	StatusDenied:          "Uso denegado",
	StatusServiceRunning:  "Serviço em operação",
	StatusServiceStopped:  "Serviço paralisado momentaneamente",
	StatusServiceDown:     "Serviço paralisado sem previsão",
	StatusNotFound:        "NF-e não consta na base de dados da SEFAZ",
	StatusConnectionError: "Erro de conexão com a SEFAZ",
}

// StatusMessage descripción conocida de un cStat (vacío si no está catalogado).
func StatusMessage(cStat string) string {
	return statusMessages[cStat]
}
