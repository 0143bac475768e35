package signer

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/ucarion/c14n"
)

// Modos de canonicalización (FISCAL_C14N).
const (
	ModeSimplified = "simplified"
	ModeInclusive  = "c14n"
	ModeExclusive  = "exc-c14n"
)

// Canonicalizer serializa de forma determinista un fragmento XML antes del digest.
// defaultNS es el namespace por defecto heredado del ancestro; los modos estrictos
// lo declaran en el elemento raíz del fragmento si no está presente.
type Canonicalizer interface {
	Canonicalize(fragment []byte, defaultNS string) ([]byte, error)
	Algorithm() string
}

// NewCanonicalizer devuelve el canonicalizador del modo indicado ("" = simplified).
func NewCanonicalizer(mode string) (Canonicalizer, error) {
	switch mode {
	case "", ModeSimplified:
		return simplifiedCanonicalizer{}, nil
	case ModeInclusive:
		return inclusiveCanonicalizer{}, nil
	case ModeExclusive:
		return exclusiveCanonicalizer{}, nil
	default:
		return nil, fmt.Errorf("signer: modo de canonicalização desconhecido %q", mode)
	}
}

var betweenTags = regexp.MustCompile(`>\s+<`)

// simplifiedCanonicalizer elimina espacios entre etiquetas y saltos de línea.
// No reordena atributos ni normaliza namespaces.
type simplifiedCanonicalizer struct{}

func (simplifiedCanonicalizer) Canonicalize(fragment []byte, _ string) ([]byte, error) {
	out := betweenTags.ReplaceAll(fragment, []byte("><"))
	out = bytes.ReplaceAll(out, []byte("\n"), nil)
	out = bytes.ReplaceAll(out, []byte("\r"), nil)
	return bytes.TrimSpace(out), nil
}

func (simplifiedCanonicalizer) Algorithm() string { return AlgC14N }

// inclusiveCanonicalizer implementa Canonical XML 1.0 sin comentarios.
type inclusiveCanonicalizer struct{}

func (inclusiveCanonicalizer) Canonicalize(fragment []byte, defaultNS string) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(withDefaultNS(fragment, defaultNS)))
	dec.Entity = map[string]string{}
	out, err := c14n.Canonicalize(dec)
	if err != nil {
		return nil, fmt.Errorf("signer: c14n: %w", err)
	}
	return out, nil
}

func (inclusiveCanonicalizer) Algorithm() string { return AlgC14N }

// exclusiveCanonicalizer implementa Exclusive XML Canonicalization 1.0.
type exclusiveCanonicalizer struct{}

func (exclusiveCanonicalizer) Canonicalize(fragment []byte, defaultNS string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(withDefaultNS(fragment, defaultNS)); err != nil {
		return nil, fmt.Errorf("signer: exc-c14n: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("signer: exc-c14n: fragmento vazio")
	}
	out, err := dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("").Canonicalize(root)
	if err != nil {
		return nil, fmt.Errorf("signer: exc-c14n: %w", err)
	}
	return out, nil
}

func (exclusiveCanonicalizer) Algorithm() string { return AlgExcC14N }

// withDefaultNS declara xmlns en la etiqueta de apertura del fragmento si falta.
func withDefaultNS(fragment []byte, ns string) []byte {
	if ns == "" {
		return fragment
	}
	end := bytes.IndexByte(fragment, '>')
	if end < 0 {
		return fragment
	}
	startTag := string(fragment[:end])
	if strings.Contains(startTag, ` xmlns="`) {
		return fragment
	}
	cut := end
	if end > 0 && fragment[end-1] == '/' {
		cut = end - 1
	}
	var b bytes.Buffer
	b.Grow(len(fragment) + len(ns) + 10)
	b.Write(fragment[:cut])
	b.WriteString(` xmlns="` + escapeXML(ns) + `"`)
	b.Write(fragment[cut:])
	return b.Bytes()
}
