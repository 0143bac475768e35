package pdf

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

// DefaultColumns ancho de las impresoras térmicas de 80 mm en fuente A.
const DefaultColumns = 48

// keyGroupsPerLine grupos de la chave en la primera línea cuando no cabe entera.
const keyGroupsPerLine = 6

// TextDanfeRenderer genera la DANFE en texto plano para impresoras sin soporte de imagen.
// Render devuelve el texto en CP850; RenderString en UTF-8.
type TextDanfeRenderer struct {
	columns int
}

// NewTextDanfeRenderer crea el renderizador; columns <= 0 usa DefaultColumns.
func NewTextDanfeRenderer(columns int) *TextDanfeRenderer {
	if columns <= 0 {
		columns = DefaultColumns
	}
	return &TextDanfeRenderer{columns: columns}
}

// Render devuelve la DANFE codificada en CP850; runas sin equivalente se reemplazan.
func (r *TextDanfeRenderer) Render(_ context.Context, procXML []byte) ([]byte, error) {
	s, err := r.RenderString(procXML)
	if err != nil {
		return nil, err
	}
	out, err := encoding.ReplaceUnsupported(charmap.CodePage850.NewEncoder()).String(s)
	if err != nil {
		return nil, fmt.Errorf("pdf: codificar CP850: %w", err)
	}
	return []byte(out), nil
}

// RenderString arma la DANFE en texto con el mismo contenido del PDF, sin el QR Code.
func (r *TextDanfeRenderer) RenderString(procXML []byte) (string, error) {
	d, err := ParseDanfe(procXML)
	if err != nil {
		return "", err
	}
	w := &textWriter{cols: r.columns}

	name := d.Issuer.LegalName
	if d.Issuer.TradeName != "" {
		name = d.Issuer.TradeName
	}
	w.center(name)
	w.center("CNPJ: " + fiscal.FormatCNPJ(d.Issuer.CNPJ) + "  IE: " + d.Issuer.IE)
	w.center(d.Issuer.Address())
	w.rule()
	w.center("DANFE NFC-e - Documento Auxiliar")
	w.center("da Nota Fiscal de Consumidor Eletrônica")
	if d.Homologation {
		w.center("EMITIDA EM AMBIENTE DE HOMOLOGAÇÃO")
		w.center("SEM VALOR FISCAL")
	}
	if d.Contingency {
		w.center("EMITIDA EM CONTINGÊNCIA")
	}
	w.rule()

	// código(6) descrição(resto) / qtd x unit = total
	w.columns("CÓDIGO DESCRIÇÃO", "VL TOTAL")
	for _, it := range d.Items {
		w.columns(fmt.Sprintf("%-6s %s", truncate(it.Code, 6), it.Description), "")
		w.columns(fmt.Sprintf("  %s %s x %s", formatQuantity(it.Quantity), it.Unit, formatBRL(it.UnitPrice)), formatBRL(it.Total))
	}
	w.rule()

	w.columns("Qtde. total de itens", fmt.Sprintf("%d", len(d.Items)))
	w.columns("Valor total R$", formatBRL(d.Products))
	if d.Discount.IsPositive() {
		w.columns("Desconto R$", formatBRL(d.Discount))
	}
	w.columns("Valor a pagar R$", formatBRL(d.Total))
	w.columns("FORMA DE PAGAMENTO", "VALOR PAGO R$")
	for _, p := range d.Payments {
		w.columns(p.Label, formatBRL(p.Amount))
	}
	if d.Change.IsPositive() {
		w.columns("Troco R$", formatBRL(d.Change))
	}
	w.rule()

	w.center(fmt.Sprintf("NFC-e nº %s Série %s", d.Number, d.Series))
	w.center(formatDateTime(d.IssuedAt))
	if d.ConsultURL != "" {
		w.center("Consulte pela Chave de Acesso em")
		w.center(d.ConsultURL)
	}
	w.accessKey(d.AccessKey)
	w.rule()
	w.center(recipientLine(d.Recipient))
	if d.Protocol != "" {
		w.center("Protocolo de autorização: " + d.Protocol)
		w.center("Data de autorização: " + formatDateTime(d.AuthorizedAt))
	}
	if d.InfCpl != "" {
		w.rule()
		w.wrap(d.InfCpl)
	}
	return w.String(), nil
}

// textWriter acumula líneas de ancho fijo medidas en runas.
type textWriter struct {
	strings.Builder
	cols int
}

func (w *textWriter) line(s string) {
	w.WriteString(s)
	w.WriteByte('\n')
}

func (w *textWriter) rule() { w.line(strings.Repeat("-", w.cols)) }

func (w *textWriter) center(s string) {
	for _, part := range split(s, w.cols) {
		pad := (w.cols - utf8.RuneCountInString(part)) / 2
		w.line(strings.Repeat(" ", pad) + part)
	}
}

// accessKey escribe la chave en grupos de 4. Si no cabe en una línea van 6 grupos y luego 5,
// sin partir ningún grupo.
func (w *textWriter) accessKey(key string) {
	grouped := fiscal.FormatAccessKey(key)
	groups := strings.Fields(grouped)
	if utf8.RuneCountInString(grouped) <= w.cols || len(groups) <= keyGroupsPerLine {
		w.center(grouped)
		return
	}
	w.center(strings.Join(groups[:keyGroupsPerLine], " "))
	w.center(strings.Join(groups[keyGroupsPerLine:], " "))
}

// columns escribe left alineado a la izquierda y right a la derecha; left se trunca si no cabe.
func (w *textWriter) columns(left, right string) {
	rl := utf8.RuneCountInString(right)
	room := w.cols - rl
	if right != "" {
		room--
	}
	left = truncate(left, room)
	gap := w.cols - utf8.RuneCountInString(left) - rl
	if right == "" {
		w.line(left)
		return
	}
	w.line(left + strings.Repeat(" ", gap) + right)
}

func (w *textWriter) wrap(s string) {
	for _, part := range split(s, w.cols) {
		w.line(part)
	}
}

// split corta s en líneas de hasta n runas, respetando los espacios cuando es posible.
func split(s string, n int) []string {
	var parts []string
	r := []rune(strings.TrimSpace(s))
	for len(r) > n {
		cut := n
		for i := n; i > 0; i-- {
			if r[i] == ' ' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimSpace(string(r[:cut])))
		r = []rune(strings.TrimSpace(string(r[cut:])))
	}
	if len(r) > 0 {
		parts = append(parts, string(r))
	}
	return parts
}
