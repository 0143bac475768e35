package nfce

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	"github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

// XMLBuilderService construye el XML de la NFC-e sin firma.
type XMLBuilderService struct {
	softwareVersion string
	infCplPrefix    string
	regimes         *RegimeRegistry
}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService(opts BuilderOptions) *XMLBuilderService {
	if opts.Regimes == nil {
		opts.Regimes = NewRegimeRegistry()
	}
	return &XMLBuilderService{
		softwareVersion: opts.SoftwareVersion,
		infCplPrefix:    opts.InfCplPrefix,
		regimes:         opts.Regimes,
	}
}

// Totals son los totalizadores calculados a partir de los ítems de la venta.
type Totals struct {
	Products decimal.Decimal // vProd: suma de vProd de los ítems
	Discount decimal.Decimal // vDesc
	Total    decimal.Decimal // vNF = vProd - vDesc
}

// ComputeTotals suma los subtotales de ítem redondeados a 2 decimales y descuenta el desconto.
func ComputeTotals(sale *entity.Sale) Totals {
	products := decimal.Zero
	for _, it := range sale.Items {
		products = products.Add(it.Subtotal.Round(2))
	}
	discount := sale.Discount.Round(2)
	return Totals{Products: products, Discount: discount, Total: products.Sub(discount)}
}

// Build genera el documento NFe/infNFe compacto (sin espacios entre etiquetas).
func (s *XMLBuilderService) Build(in *BuildInput) ([]byte, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	sale, p := in.Sale, in.Profile
	cUF, _ := fiscal.UFCode(p.UF)
	totals := ComputeTotals(sale)
	if !sale.Total.IsZero() && !sale.Total.Round(2).Equal(totals.Total) {
		return nil, fmt.Errorf("nfce: total da venda %s não confere com itens menos desconto %s",
			sale.Total.StringFixed(2), totals.Total.StringFixed(2))
	}
	if totals.Total.IsNegative() {
		return nil, fmt.Errorf("nfce: desconto maior que o valor dos produtos")
	}

	var buf bytes.Buffer
	buf.WriteString(xmlDecl)
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{
		Name: xml.Name{Local: "NFe"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: NsNFe}},
	}
	_ = enc.EncodeToken(root)
	openEl(enc, "infNFe",
		xml.Attr{Name: xml.Name{Local: "versao"}, Value: LayoutVersion},
		xml.Attr{Name: xml.Name{Local: "Id"}, Value: "NFe" + in.AccessKey},
	)

	// ---- ide
	openEl(enc, "ide")
	writeEl(enc, "cUF", strconv.Itoa(cUF))
	writeEl(enc, "cNF", fiscal.PadLeft(strconv.FormatInt(in.RandomCode, 10), 8, '0'))
	writeEl(enc, "natOp", NatOpSale)
	writeEl(enc, "mod", strconv.Itoa(fiscal.ModelNFCe))
	writeEl(enc, "serie", strconv.Itoa(p.Series))
	writeEl(enc, "nNF", strconv.FormatInt(in.Number, 10))
	writeEl(enc, "dhEmi", fiscal.FormatSefazDateTime(sale.CreatedAt))
	writeEl(enc, "tpNF", "1")
	writeEl(enc, "idDest", "1")
	writeEl(enc, "cMunFG", p.CityCode)
	writeEl(enc, "tpImp", "4")
	writeEl(enc, "tpEmis", strconv.Itoa(p.EmissionType()))
	writeEl(enc, "cDV", in.AccessKey[43:])
	writeEl(enc, "tpAmb", fiscal.TpAmb(p.Environment))
	writeEl(enc, "finNFe", "1")
	writeEl(enc, "indFinal", "1")
	writeEl(enc, "indPres", "1")
	writeEl(enc, "procEmi", "0")
	writeEl(enc, "verProc", s.softwareVersion)
	closeEl(enc, "ide")

	// ---- emit
	s.writeIssuer(enc, p)

	// ---- dest (solo con comprador identificado: CPF o CNPJ)
	if id := fiscal.OnlyDigits(sale.CPF); id != "" {
		openEl(enc, "dest")
		if len(id) == 14 {
			writeEl(enc, "CNPJ", id)
		} else {
			writeEl(enc, "CPF", id)
		}
		if sale.CustomerName != "" {
			writeEl(enc, "xNome", sale.CustomerName)
		}
		writeEl(enc, "indIEDest", NonContributor)
		closeEl(enc, "dest")
	}

	// ---- det
	regime := s.regimes.For(p.CRT)
	for i, item := range sale.Items {
		s.writeItem(enc, i+1, item, regime)
	}

	// ---- total
	writeTotals(enc, totals)

	// ---- transp
	openEl(enc, "transp")
	writeEl(enc, "modFrete", "9")
	closeEl(enc, "transp")

	// ---- pag
	openEl(enc, "pag")
	openEl(enc, "detPag")
	writeEl(enc, "indPag", "0")
	writeEl(enc, "tPag", fiscal.PaymentCode(sale.PaymentMethod))
	writeEl(enc, "vPag", totals.Total.StringFixed(2))
	closeEl(enc, "detPag")
	closeEl(enc, "pag")

	// ---- infAdic
	if infCpl := s.supplementaryText(sale); infCpl != "" {
		openEl(enc, "infAdic")
		writeEl(enc, "infCpl", infCpl)
		closeEl(enc, "infAdic")
	}

	closeEl(enc, "infNFe")
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, fmt.Errorf("nfce: serializar XML: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("nfce: serializar XML: %w", err)
	}
	return buf.Bytes(), nil
}

func validateInput(in *BuildInput) error {
	if in == nil || in.Sale == nil || in.Profile == nil {
		return fmt.Errorf("nfce: faltan venta o perfil fiscal")
	}
	if len(in.Sale.Items) == 0 {
		return fmt.Errorf("nfce: venda %d sem itens", in.Sale.ID)
	}
	if !fiscal.ValidateAccessKey(in.AccessKey) {
		return fmt.Errorf("nfce: chave de acesso inválida %q", in.AccessKey)
	}
	if _, ok := fiscal.UFCode(in.Profile.UF); !ok {
		return fmt.Errorf("nfce: UF desconhecida %q", in.Profile.UF)
	}
	if id := fiscal.OnlyDigits(in.Sale.CPF); id != "" && !fiscal.ValidateCPF(id) && !fiscal.ValidateCNPJ(id) {
		return fmt.Errorf("nfce: documento do comprador inválido %q", in.Sale.CPF)
	}
	for i, it := range in.Sale.Items {
		if !it.Quantity.IsPositive() {
			return fmt.Errorf("nfce: item %d com quantidade inválida", i+1)
		}
		if it.UnitPrice.IsNegative() || it.Subtotal.IsNegative() {
			return fmt.Errorf("nfce: item %d com valor negativo", i+1)
		}
		if strings.TrimSpace(it.Description) == "" {
			return fmt.Errorf("nfce: item %d sem descrição", i+1)
		}
	}
	return nil
}

func (s *XMLBuilderService) writeIssuer(enc *xml.Encoder, p *entity.FiscalProfile) {
	openEl(enc, "emit")
	writeEl(enc, "CNPJ", fiscal.OnlyDigits(p.CNPJ))
	writeEl(enc, "xNome", p.LegalName)
	if p.TradeName != "" {
		writeEl(enc, "xFant", p.TradeName)
	}
	openEl(enc, "enderEmit")
	writeEl(enc, "xLgr", p.Street)
	writeEl(enc, "nro", p.Number)
	if p.Complement != "" {
		writeEl(enc, "xCpl", p.Complement)
	}
	writeEl(enc, "xBairro", p.District)
	writeEl(enc, "cMun", p.CityCode)
	writeEl(enc, "xMun", p.CityName)
	writeEl(enc, "UF", strings.ToUpper(p.UF))
	writeEl(enc, "CEP", fiscal.OnlyDigits(p.CEP))
	writeEl(enc, "cPais", CountryBrazil)
	writeEl(enc, "xPais", CountryName)
	if phone := fiscal.OnlyDigits(p.Phone); phone != "" {
		writeEl(enc, "fone", phone)
	}
	closeEl(enc, "enderEmit")
	writeEl(enc, "IE", fiscal.OnlyDigits(p.IE))
	writeEl(enc, "CRT", strconv.Itoa(p.CRT))
	closeEl(enc, "emit")
}

func (s *XMLBuilderService) writeItem(enc *xml.Encoder, n int, item entity.SaleItem, regime TaxRegime) {
	code := item.ProductCode
	if code == "" && item.ProductID != 0 {
		code = strconv.FormatInt(item.ProductID, 10)
	}
	if code == "" {
		code = strconv.Itoa(n)
	}
	ean := nonEmpty(item.Barcode, NoGTIN)
	unit := nonEmpty(item.Unit, DefaultUnit)
	qty := item.Quantity.StringFixed(4)
	price := item.UnitPrice.StringFixed(10)

	openEl(enc, "det", xml.Attr{Name: xml.Name{Local: "nItem"}, Value: strconv.Itoa(n)})
	openEl(enc, "prod")
	writeEl(enc, "cProd", code)
	writeEl(enc, "cEAN", ean)
	writeEl(enc, "xProd", item.Description)
	writeEl(enc, "NCM", nonEmpty(item.NCM, DefaultNCM))
	writeEl(enc, "CFOP", CFOPSale)
	writeEl(enc, "uCom", unit)
	writeEl(enc, "qCom", qty)
	writeEl(enc, "vUnCom", price)
	writeEl(enc, "vProd", item.Subtotal.StringFixed(2))
	writeEl(enc, "cEANTrib", ean)
	writeEl(enc, "uTrib", unit)
	writeEl(enc, "qTrib", qty)
	writeEl(enc, "vUnTrib", price)
	writeEl(enc, "indTot", "1")
	closeEl(enc, "prod")

	openEl(enc, "imposto")
	regime.WriteItemTaxes(enc, item)
	closeEl(enc, "imposto")
	closeEl(enc, "det")
}

func writeTotals(enc *xml.Encoder, t Totals) {
	zero := "0.00"
	openEl(enc, "total")
	openEl(enc, "ICMSTot")
	writeEl(enc, "vBC", zero)
	writeEl(enc, "vICMS", zero)
	writeEl(enc, "vICMSDeson", zero)
	writeEl(enc, "vFCP", zero)
	writeEl(enc, "vBCST", zero)
	writeEl(enc, "vST", zero)
	writeEl(enc, "vFCPST", zero)
	writeEl(enc, "vFCPSTRet", zero)
	writeEl(enc, "vProd", t.Products.StringFixed(2))
	writeEl(enc, "vFrete", zero)
	writeEl(enc, "vSeg", zero)
	writeEl(enc, "vDesc", t.Discount.StringFixed(2))
	writeEl(enc, "vII", zero)
	writeEl(enc, "vIPI", zero)
	writeEl(enc, "vIPIDevol", zero)
	writeEl(enc, "vPIS", zero)
	writeEl(enc, "vCOFINS", zero)
	writeEl(enc, "vOutro", zero)
	writeEl(enc, "vNF", t.Total.StringFixed(2))
	writeEl(enc, "vTotTrib", zero)
	closeEl(enc, "ICMSTot")
	closeEl(enc, "total")
}

type cashDetails struct {
	AmountPaid decimal.NullDecimal `json:"amountPaid"`
	Change     decimal.NullDecimal `json:"change"`
}

// supplementaryText arma infCpl; en pagos en efectivo agrega valor pagado y troco.
func (s *XMLBuilderService) supplementaryText(sale *entity.Sale) string {
	text := s.infCplPrefix
	if !strings.EqualFold(sale.PaymentMethod, fiscal.PaymentCash) || sale.PaymentDetails == "" {
		return text
	}
	var d cashDetails
	if err := json.Unmarshal([]byte(sale.PaymentDetails), &d); err != nil {
		return text
	}
	if !d.AmountPaid.Valid || !d.Change.Valid || d.AmountPaid.Decimal.IsZero() || d.Change.Decimal.IsZero() {
		return text
	}
	detail := fmt.Sprintf("Valor Pago: R$ %s | Troco: R$ %s",
		d.AmountPaid.Decimal.StringFixed(2), d.Change.Decimal.StringFixed(2))
	if text == "" {
		return detail
	}
	return text + " | " + detail
}

func openEl(enc *xml.Encoder, local string, attrs ...xml.Attr) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}, Attr: attrs})
}

func closeEl(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func writeEl(enc *xml.Encoder, local, value string) {
	openEl(enc, local)
	_ = enc.EncodeToken(xml.CharData(value))
	closeEl(enc, local)
}

func nonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
