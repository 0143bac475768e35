// Package pdf genera la DANFE NFC-e (Documento Auxiliar da Nota Fiscal de
// Consumidor Eletrônica) a partir del nfeProc autorizado.
//
// Layout del cupón de 80 mm:
//
//	┌──────────────────────────────┐
//	│ Razão social / CNPJ / IE     │
//	│ Endereço                     │
//	│ DANFE NFC-e (banner)         │
//	│ Cód | Descrição | Qtd | Total│
//	│ Totais / Forma de pagamento  │
//	│ Consulta pela chave          │
//	│ QR Code                      │
//	│ Protocolo / Consumidor       │
//	│ Informações complementares   │
//	└──────────────────────────────┘
package pdf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

// Danfe es la vista estructurada del nfeProc usada por los renderizadores.
type Danfe struct {
	Issuer    Issuer
	Recipient *Recipient
	Items     []Item
	Products  decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
	Payments  []Payment
	Change    decimal.Decimal
	AccessKey    string
	Number       string
	Series       string
	IssuedAt     *time.Time
	Homologation bool
	Contingency  bool

	Protocol     string
	AuthorizedAt *time.Time

	QRCode     string
	ConsultURL string
	InfCpl     string
}

// Issuer datos del emitente.
type Issuer struct {
	CNPJ      string
	IE        string
	LegalName string
	TradeName string
	Street    string
	Number    string
	District  string
	City      string
	UF        string
	CEP       string
}

// Address arma el endereço en una línea.
func (i Issuer) Address() string {
	parts := []string{}
	if i.Street != "" {
		parts = append(parts, strings.TrimSpace(i.Street+", "+i.Number))
	}
	for _, p := range []string{i.District, i.City + "/" + i.UF} {
		if strings.Trim(p, "/ ") != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " - ")
}

// Recipient consumidor identificado.
type Recipient struct {
	CPF  string
	CNPJ string
	Name string
}

// Item línea de la DANFE.
type Item struct {
	Number      int
	Code        string
	Description string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// Payment forma de pago declarada en <pag>.
type Payment struct {
	Code   string
	Label  string
	Amount decimal.Decimal
}

// ErrNotNFe indica que el XML no contiene infNFe.
var ErrNotNFe = errors.New("pdf: XML sem infNFe")

// ParseDanfe lee el nfeProc (o la NFe firmada) y arma la vista de la DANFE.
func ParseDanfe(xmlBytes []byte) (*Danfe, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("pdf: parsear XML: %w", err)
	}
	if doc.Root() == nil {
		return nil, ErrNotNFe
	}
	stripPrefixes(doc.Root())
	inf := doc.FindElement("//infNFe")
	if inf == nil {
		return nil, ErrNotNFe
	}

	d := &Danfe{
		AccessKey:    strings.TrimPrefix(inf.SelectAttrValue("Id", ""), "NFe"),
		Number:       childText(inf, "ide/nNF"),
		Series:       childText(inf, "ide/serie"),
		IssuedAt:     parseTime(childText(inf, "ide/dhEmi")),
		Homologation: childText(inf, "ide/tpAmb") == "2",
		Contingency:  childText(inf, "ide/tpEmis") == strconv.Itoa(fiscal.EmissionContingency),
		Issuer: Issuer{
			CNPJ:      childText(inf, "emit/CNPJ"),
			IE:        childText(inf, "emit/IE"),
			LegalName: childText(inf, "emit/xNome"),
			TradeName: childText(inf, "emit/xFant"),
			Street:    childText(inf, "emit/enderEmit/xLgr"),
			Number:    childText(inf, "emit/enderEmit/nro"),
			District:  childText(inf, "emit/enderEmit/xBairro"),
			City:      childText(inf, "emit/enderEmit/xMun"),
			UF:        childText(inf, "emit/enderEmit/UF"),
			CEP:       childText(inf, "emit/enderEmit/CEP"),
		},
		Products: amount(inf, "total/ICMSTot/vProd"),
		Discount: amount(inf, "total/ICMSTot/vDesc"),
		Total:    amount(inf, "total/ICMSTot/vNF"),
		Change:   amount(inf, "pag/vTroco"),
		InfCpl:   childText(inf, "infAdic/infCpl"),
	}

	if dest := inf.FindElement("./dest"); dest != nil {
		d.Recipient = &Recipient{
			CPF:  childText(dest, "CPF"),
			CNPJ: childText(dest, "CNPJ"),
			Name: childText(dest, "xNome"),
		}
	}

	for _, det := range inf.FindElements("./det") {
		n, _ := strconv.Atoi(det.SelectAttrValue("nItem", "0"))
		d.Items = append(d.Items, Item{
			Number:      n,
			Code:        childText(det, "prod/cProd"),
			Description: childText(det, "prod/xProd"),
			Quantity:    amount(det, "prod/qCom"),
			Unit:        childText(det, "prod/uCom"),
			UnitPrice:   amount(det, "prod/vUnCom"),
			Total:       amount(det, "prod/vProd"),
		})
	}

	for _, p := range inf.FindElements("./pag/detPag") {
		code := childText(p, "tPag")
		d.Payments = append(d.Payments, Payment{
			Code:   code,
			Label:  fiscal.PaymentLabel(code),
			Amount: amount(p, "vPag"),
		})
	}

	if prot := doc.FindElement("//protNFe/infProt"); prot != nil {
		d.Protocol = childText(prot, "nProt")
		d.AuthorizedAt = parseTime(childText(prot, "dhRecbto"))
	}
	if supl := doc.FindElement("//infNFeSupl"); supl != nil {
		d.QRCode = childText(supl, "qrCode")
		d.ConsultURL = childText(supl, "urlChave")
	}
	return d, nil
}

// ── helpers privados ──────────────────────────────────────────────────────────

func stripPrefixes(el *etree.Element) {
	el.Space = ""
	for _, ch := range el.ChildElements() {
		stripPrefixes(ch)
	}
}

func childText(el *etree.Element, path string) string {
	if ch := el.FindElement("./" + path); ch != nil {
		return strings.TrimSpace(ch.Text())
	}
	return ""
}

func amount(el *etree.Element, path string) decimal.Decimal {
	v, err := decimal.NewFromString(childText(el, path))
	if err != nil {
		return decimal.Zero
	}
	return v
}

func parseTime(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// formatBRL formatea un valor monetario como 1.234,56.
func formatBRL(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")
	out := formatThousands(intPart) + "," + frac
	if neg {
		return "-" + out
	}
	return out
}

// formatQuantity usa coma decimal y descarta ceros a la derecha (1,5 / 2).
func formatQuantity(d decimal.Decimal) string {
	return strings.Replace(d.String(), ".", ",", 1)
}

// formatThousands inserta puntos de miles en un string numérico sin decimales.
// Ej: "25000" → "25.000", "1000000" → "1.000.000"
func formatThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return string(buf)
}

func formatDateTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(fiscal.Location()).Format("02/01/2006 15:04:05")
}

func recipientLine(r *Recipient) string {
	var line string
	switch {
	case r == nil:
		return "CONSUMIDOR NÃO IDENTIFICADO"
	case r.CPF != "":
		line = "CONSUMIDOR CPF: " + fiscal.FormatCPF(r.CPF)
	case r.CNPJ != "":
		line = "CONSUMIDOR CNPJ: " + fiscal.FormatCNPJ(r.CNPJ)
	default:
		return "CONSUMIDOR NÃO IDENTIFICADO"
	}
	if r.Name != "" {
		line += " - " + r.Name
	}
	return line
}
