package pdf

import (
	"context"
	"fmt"
	"strconv"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

// Dimensiones del cupón (mm).
const (
	PaperWidth  = 80.0
	PaperHeight = 297.0
	margin      = 3.0
)

var (
	colorGray = &props.Color{Red: 90, Green: 90, Blue: 90}
	divider   = props.Line{Color: colorGray, Thickness: 0.2}
)

// MarotoDanfeRenderer genera la DANFE NFC-e en PDF de 80 mm con Maroto v2.
type MarotoDanfeRenderer struct{}

// NewMarotoDanfeRenderer construye el renderizador.
func NewMarotoDanfeRenderer() *MarotoDanfeRenderer { return &MarotoDanfeRenderer{} }

// Render parsea el nfeProc y devuelve los bytes del PDF.
func (r *MarotoDanfeRenderer) Render(_ context.Context, procXML []byte) ([]byte, error) {
	d, err := ParseDanfe(procXML)
	if err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithDimensions(PaperWidth, PaperHeight).
		WithLeftMargin(margin).WithRightMargin(margin).
		WithTopMargin(margin).WithBottomMargin(margin).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 7}).
		WithTitle("DANFE NFC-e "+d.AccessKey, true).
		WithAuthor(d.Issuer.LegalName, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRows(d)...)
	m.AddRows(line.NewRow(2, divider))
	m.AddRows(bannerRows(d)...)
	m.AddRows(line.NewRow(2, divider))
	m.AddRows(itemsHeaderRow())
	m.AddRows(itemRows(d.Items)...)
	m.AddRows(line.NewRow(2, divider))
	m.AddRows(totalsRows(d)...)
	m.AddRows(line.NewRow(2, divider))
	m.AddRows(keyRows(d)...)
	m.AddRows(qrRows(d)...)
	m.AddRows(protocolRows(d)...)
	if d.InfCpl != "" {
		m.AddRows(line.NewRow(2, divider))
		m.AddRows(centered(d.InfCpl, 6, fontstyle.Normal))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRows(d *Danfe) []core.Row {
	name := d.Issuer.LegalName
	if d.Issuer.TradeName != "" {
		name = d.Issuer.TradeName
	}
	return []core.Row{
		centered(name, 8, fontstyle.Bold),
		centered(fmt.Sprintf("CNPJ: %s  IE: %s", fiscal.FormatCNPJ(d.Issuer.CNPJ), d.Issuer.IE), 6.5, fontstyle.Normal),
		centered(d.Issuer.Address(), 6.5, fontstyle.Normal),
	}
}

func bannerRows(d *Danfe) []core.Row {
	rows := []core.Row{
		centered("DANFE NFC-e - Documento Auxiliar da Nota Fiscal de Consumidor Eletrônica", 6.5, fontstyle.Bold),
	}
	if d.Homologation {
		rows = append(rows, centered("EMITIDA EM AMBIENTE DE HOMOLOGAÇÃO - SEM VALOR FISCAL", 6.5, fontstyle.Bold))
	}
	if d.Contingency {
		rows = append(rows, centered("EMITIDA EM CONTINGÊNCIA", 6.5, fontstyle.Bold))
	}
	return rows
}

func itemsHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{Style: fontstyle.Bold, Size: 6, Align: a}))
	}
	return row.New(4).Add(
		h("Código", 2, align.Left),
		h("Descrição", 4, align.Left),
		h("Qtd", 2, align.Right),
		h("Vl Unit", 2, align.Right),
		h("Vl Total", 2, align.Right),
	)
}

func itemRows(items []Item) []core.Row {
	rows := make([]core.Row, 0, len(items))
	cell := func(s string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(s, props.Text{Size: 6, Align: a}))
	}
	for _, it := range items {
		rows = append(rows, row.New(4).Add(
			cell(truncate(it.Code, 8), 2, align.Left),
			cell(truncate(it.Description, 22), 4, align.Left),
			cell(formatQuantity(it.Quantity)+" "+it.Unit, 2, align.Right),
			cell(formatBRL(it.UnitPrice), 2, align.Right),
			cell(formatBRL(it.Total), 2, align.Right),
		))
	}
	return rows
}

func totalsRows(d *Danfe) []core.Row {
	rows := []core.Row{
		labelValue("Qtde. total de itens", strconv.Itoa(len(d.Items)), fontstyle.Normal),
		labelValue("Valor total R$", formatBRL(d.Products), fontstyle.Normal),
	}
	if d.Discount.IsPositive() {
		rows = append(rows, labelValue("Desconto R$", formatBRL(d.Discount), fontstyle.Normal))
	}
	rows = append(rows,
		labelValue("Valor a pagar R$", formatBRL(d.Total), fontstyle.Bold),
		labelValue("FORMA DE PAGAMENTO", "VALOR PAGO R$", fontstyle.Bold),
	)
	for _, p := range d.Payments {
		rows = append(rows, labelValue(p.Label, formatBRL(p.Amount), fontstyle.Normal))
	}
	if d.Change.IsPositive() {
		rows = append(rows, labelValue("Troco R$", formatBRL(d.Change), fontstyle.Normal))
	}
	return rows
}

func keyRows(d *Danfe) []core.Row {
	rows := []core.Row{
		centered(fmt.Sprintf("NFC-e nº %s Série %s %s", d.Number, d.Series, formatDateTime(d.IssuedAt)), 6.5, fontstyle.Bold),
	}
	if d.ConsultURL != "" {
		rows = append(rows,
			centered("Consulte pela Chave de Acesso em", 6, fontstyle.Normal),
			centered(d.ConsultURL, 6, fontstyle.Normal),
		)
	}
	rows = append(rows, centered(fiscal.FormatAccessKey(d.AccessKey), 6.5, fontstyle.Bold))
	return rows
}

func qrRows(d *Danfe) []core.Row {
	if d.QRCode == "" {
		return nil
	}
	return []core.Row{
		row.New(2),
		row.New(40).Add(
			col.New(2),
			col.New(8).Add(code.NewQr(d.QRCode, props.Rect{Percent: 100, Center: true})),
			col.New(2),
		),
		row.New(2),
	}
}

func protocolRows(d *Danfe) []core.Row {
	rows := []core.Row{centered(recipientLine(d.Recipient), 6.5, fontstyle.Normal)}
	if d.Protocol != "" {
		rows = append(rows,
			centered("Protocolo de autorização: "+d.Protocol, 6.5, fontstyle.Bold),
			centered("Data de autorização: "+formatDateTime(d.AuthorizedAt), 6.5, fontstyle.Normal),
		)
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func centered(s string, size float64, style fontstyle.Type) core.Row {
	return row.New(size*0.6).Add(col.New(12).Add(
		text.New(s, props.Text{Size: size, Style: style, Align: align.Center}),
	))
}

func labelValue(label, value string, style fontstyle.Type) core.Row {
	return row.New(4).Add(
		col.New(8).Add(text.New(label, props.Text{Size: 6.5, Style: style, Align: align.Left})),
		col.New(4).Add(text.New(value, props.Text{Size: 6.5, Style: style, Align: align.Right})),
	)
}

// truncate corta s en n runas.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
