package fiscal

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Modelos de documento fiscal.
const (
	ModelNFe  = 55
	ModelNFCe = 65
)

// Tipos de emisión (tpEmis).
const (
	EmissionNormal      = 1
	EmissionContingency = 9
)

// AccessKeyLength longitud fija de la chave de acesso.
const AccessKeyLength = 44

// AccessKeyParams campos que componen la chave de acesso (layout SEFAZ 4.00):
//
//	cUF(2) AAMM(4) CNPJ(14) mod(2) serie(3) nNF(9) tpEmis(1) cNF(8) cDV(1)
type AccessKeyParams struct {
	Region       int    // código IBGE de la UF (35 = SP)
	YearMonth    string // AAMM
	TaxID        string // CNPJ del emisor (se ignoran los separadores)
	Model        int    // 65 = NFC-e
	Series       int
	Number       int64
	EmissionType int   // 1 = normal, 9 = contingencia offline
	RandomCode   int64 // cNF; cero genera uno aleatorio de 8 dígitos
}

// GenerateAccessKey arma los 43 dígitos con relleno de ceros y agrega el dígito verificador.
// Para resultados reproducibles el llamador debe informar RandomCode.
func GenerateAccessKey(p AccessKeyParams) (string, error) {
	code := p.RandomCode
	if code == 0 {
		c, err := RandomCode()
		if err != nil {
			return "", err
		}
		code = c
	}
	taxID := OnlyDigits(p.TaxID)
	ym := OnlyDigits(p.YearMonth)

	fields := []struct {
		name  string
		value string
		width int
	}{
		{"cUF", fmt.Sprintf("%d", p.Region), 2},
		{"AAMM", ym, 4},
		{"CNPJ", taxID, 14},
		{"mod", fmt.Sprintf("%d", p.Model), 2},
		{"serie", fmt.Sprintf("%d", p.Series), 3},
		{"nNF", fmt.Sprintf("%d", p.Number), 9},
		{"tpEmis", fmt.Sprintf("%d", p.EmissionType), 1},
		{"cNF", fmt.Sprintf("%d", code), 8},
	}

	var sb strings.Builder
	for _, f := range fields {
		if strings.HasPrefix(f.value, "-") {
			return "", fmt.Errorf("fiscal: campo %s negativo", f.name)
		}
		if len(f.value) > f.width {
			return "", fmt.Errorf("fiscal: campo %s excede %d dígitos (%s)", f.name, f.width, f.value)
		}
		sb.WriteString(PadLeft(f.value, f.width, '0'))
	}
	base := sb.String()
	dv, err := ComputeCheckDigit(base)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", base, dv), nil
}

// ValidateAccessKey verifica longitud, dígitos y el DV final contra los 43 anteriores.
func ValidateAccessKey(key string) bool {
	if len(key) != AccessKeyLength || OnlyDigits(key) != key {
		return false
	}
	dv, err := ComputeCheckDigit(key[:43])
	if err != nil {
		return false
	}
	return int(key[43]-'0') == dv
}

// RandomCode genera el cNF de 8 dígitos (10000000..99999999).
func RandomCode() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90_000_000))
	if err != nil {
		return 0, fmt.Errorf("fiscal: generar código aleatorio: %w", err)
	}
	return n.Int64() + 10_000_000, nil
}

// PadLeft completa s a la izquierda con pad hasta width caracteres.
func PadLeft(s string, width int, pad byte) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(string(pad), width-len(s)) + s
}
