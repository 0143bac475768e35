package nfce

import (
	"encoding/xml"
	"sync"

	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
)

// TaxRegime escribe el bloque <imposto> de cada ítem según el régimen tributario del emisor.
type TaxRegime interface {
	Name() string
	WriteItemTaxes(enc *xml.Encoder, item entity.SaleItem)
}

// RegimeRegistry resuelve la estrategia tributaria por CRT.
// Un CRT sin estrategia registrada usa la estrategia por defecto.
type RegimeRegistry struct {
	mu       sync.RWMutex
	byCRT    map[int]TaxRegime
	fallback TaxRegime
}

// NewRegimeRegistry crea el registro con Simples Nacional como estrategia por defecto.
func NewRegimeRegistry() *RegimeRegistry {
	sn := SimplesNacional{}
	return &RegimeRegistry{
		byCRT: map[int]TaxRegime{
			entity.CRTSimplesNacional: sn,
			entity.CRTSimplesMEI:      sn,
		},
		fallback: sn,
	}
}

// Register asocia una estrategia a un CRT.
func (r *RegimeRegistry) Register(crt int, regime TaxRegime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCRT[crt] = regime
}

// For devuelve la estrategia del CRT.
func (r *RegimeRegistry) For(crt int) TaxRegime {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.byCRT[crt]; ok {
		return reg
	}
	return r.fallback
}

// SimplesNacional: ICMS CSOSN 102 (tributada sem permissão de crédito),
// PIS/COFINS não tributados CST 07 (operação isenta).
type SimplesNacional struct{}

func (SimplesNacional) Name() string { return "simples-nacional" }

func (SimplesNacional) WriteItemTaxes(enc *xml.Encoder, _ entity.SaleItem) {
	writeEl(enc, "vTotTrib", "0.00")

	openEl(enc, "ICMS")
	openEl(enc, "ICMSSN102")
	writeEl(enc, "orig", "0")
	writeEl(enc, "CSOSN", "102")
	closeEl(enc, "ICMSSN102")
	closeEl(enc, "ICMS")

	openEl(enc, "PIS")
	openEl(enc, "PISNT")
	writeEl(enc, "CST", "07")
	closeEl(enc, "PISNT")
	closeEl(enc, "PIS")

	openEl(enc, "COFINS")
	openEl(enc, "COFINSNT")
	writeEl(enc, "CST", "07")
	closeEl(enc, "COFINSNT")
	closeEl(enc, "COFINS")
}
