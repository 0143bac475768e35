package fiscal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/nfce-emissor/internal/domain"
	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	"github.com/jhoicas/nfce-emissor/internal/domain/repository"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce/signer"
	pkgfiscal "github.com/jhoicas/nfce-emissor/pkg/fiscal"
	"github.com/jhoicas/nfce-emissor/pkg/logger"
)

// Códigos internos de EmissionResult.Code cuando la SEFAZ no emitió un cStat.
const (
	CodeAlreadyEmitted = "ALREADY_EMITTED"
	CodeSaleNotFound   = "SALE_NOT_FOUND"
	CodeNoProfile      = "NO_PROFILE"
	CodeDuplicate      = "DUPLICATE"
	CodeInternal       = "INTERNAL"
)

// DefaultSubmitTimeout timeout de la autorización síncrona cuando no se configura otro.
const DefaultSubmitTimeout = 30 * time.Second

// EmissionResult es la única salida del Emitter: nunca se devuelve un error.
type EmissionResult struct {
	Success    bool   `json:"success"`
	Status     string `json:"status"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
	DocumentID int64  `json:"document_id,omitempty"`
	AccessKey  string `json:"access_key,omitempty"`
	Protocol   string `json:"protocol,omitempty"`
	XMLPath    string `json:"xml_path,omitempty"`
	PDFPath    string `json:"pdf_path,omitempty"`
	TraceID    string `json:"trace_id"`
}

// EmitterConfig parámetros de emisión.
type EmitterConfig struct {
	SubmitTimeout   time.Duration
	AdvanceOnReject bool
}

// Emitter orquesta la emisión de una NFC-e a partir de una venta finalizada:
//
//	Venta → Número + Chave → XML → Firma → QR Code → PROCESSING → SEFAZ → AUTHORIZED | REJECTED
//
// Numeración, control de idempotencia e inserción del documento PROCESSING ocurren en una
// sola transacción con el perfil activo bloqueado (FOR UPDATE). La autorización y el avance
// de last_number se confirman juntos en una segunda transacción.
//
// Resultados:
//   - cStat 100: AUTHORIZED, last_number avanza, se guardan nfeProc y DANFE.
//   - Otro cStat: REJECTED; last_number avanza solo con AdvanceOnReject.
//   - Sin respuesta (999): el documento queda PROCESSING hasta que lo resuelva el Reconciler.
//   - Falla antes del envío: ERROR, sin documento o con el documento marcado ERROR.
type Emitter struct {
	tx      TxRunner
	sales   repository.SaleRepository
	builder DocumentBuilder
	certs   CertificateLoader
	signer  Signer
	sefaz   SefazGateway
	secrets SecretSealer
	final   *finalizer
	timeout time.Duration
	now     func() time.Time
	log     *logger.Logger
}

// NewEmitter construye el orquestador con todas sus dependencias.
func NewEmitter(
	tx TxRunner,
	sales repository.SaleRepository,
	docs repository.IssuedDocumentRepository,
	builder DocumentBuilder,
	certs CertificateLoader,
	sig Signer,
	sefaz SefazGateway,
	secrets SecretSealer,
	renderer DanfeRenderer,
	store ArtifactStore,
	cfg EmitterConfig,
	log *logger.Logger,
) *Emitter {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("emitter")
	return &Emitter{
		tx:      tx,
		sales:   sales,
		builder: builder,
		certs:   certs,
		signer:  sig,
		sefaz:   sefaz,
		secrets: secrets,
		final: &finalizer{
			tx:              tx,
			docs:            docs,
			renderer:        renderer,
			store:           store,
			advanceOnReject: cfg.AdvanceOnReject,
			now:             time.Now,
			log:             log,
		},
		timeout: cfg.SubmitTimeout,
		now:     time.Now,
		log:     log,
	}
}

// SetClock reemplaza el reloj (tests).
func (e *Emitter) SetClock(now func() time.Time) {
	e.now = now
	e.final.now = now
}

// prepared es el resultado de la transacción de emisión.
type prepared struct {
	profile  *entity.FiscalProfile
	doc      *entity.IssuedDocument
	material *signer.Material
	existing *entity.IssuedDocument
}

// Emit emite la NFC-e de la venta. Es un único intento: no hay reintentos automáticos.
func (e *Emitter) Emit(ctx context.Context, saleID int64) EmissionResult {
	traceID := uuid.NewString()
	log := e.log.With().Int64("sale_id", saleID).Str("trace_id", traceID).Logger()
	res := EmissionResult{Status: entity.DocumentStatusError, TraceID: traceID}

	// fail completa el resultado de una emisión sin determinación de la SEFAZ.
	fail := func(step, code, msg string) EmissionResult {
		log.Error().Str("step", step).Str("code", code).Msg(msg)
		res.Success = false
		res.Status = entity.DocumentStatusError
		res.Code = code
		res.Message = msg
		return res
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// 1. Venta
	// ═══════════════════════════════════════════════════════════════════════════
	sale, err := e.sales.GetByID(ctx, saleID)
	if err != nil {
		return fail("fetch-sale", CodeInternal, fmt.Sprintf("Erro ao carregar venda: %v", err))
	}
	if sale == nil {
		return fail("fetch-sale", CodeSaleNotFound, "Venda não encontrada")
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// 2-7. Transacción de emisión: perfil, número, chave, XML, firma, QR, PROCESSING
	// ═══════════════════════════════════════════════════════════════════════════
	var prep prepared
	err = e.tx.RunFiscal(ctx, func(profiles repository.FiscalProfileRepository, docs repository.IssuedDocumentRepository) error {
		var txErr error
		prep, txErr = e.prepare(ctx, sale, profiles, docs)
		return txErr
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAlreadyEmitted):
		if prep.existing != nil {
			res.DocumentID = prep.existing.ID
			res.AccessKey = prep.existing.AccessKey
			res.Protocol = prep.existing.Protocol
		}
		return fail("idempotency", CodeAlreadyEmitted, domain.ErrAlreadyEmitted.Error())
	case errors.Is(err, domain.ErrNoActiveProfile):
		return fail("fetch-profile", CodeNoProfile, domain.ErrNoActiveProfile.Error())
	case errors.Is(err, domain.ErrDuplicate):
		return fail("persist", CodeDuplicate, domain.ErrAlreadyEmitted.Error())
	default:
		return fail("prepare", CodeInternal, err.Error())
	}

	doc, profile := prep.doc, prep.profile
	res.DocumentID = doc.ID
	res.AccessKey = doc.AccessKey
	log = log.With().Str("access_key", doc.AccessKey).Int64("number", doc.Number).Logger()
	log.Info().Msg("NFC-e assinada e registrada em PROCESSING")

	// ═══════════════════════════════════════════════════════════════════════════
	// 8. Envío síncrono a la SEFAZ
	// ═══════════════════════════════════════════════════════════════════════════
	submitCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	tlsCert := prep.material.TLSCertificate()
	auth, err := e.sefaz.Authorize(submitCtx, []byte(doc.XMLSent), profile.UF, profile.Environment, &tlsCert)
	if err != nil {
		// Nada llegó a la SEFAZ: el documento no bloquea una nueva emisión.
		msg := fmt.Sprintf("Erro ao enviar para SEFAZ: %v", err)
		if mErr := e.final.markStatus(ctx, doc, entity.DocumentStatusError, CodeInternal, msg); mErr != nil {
			log.Error().Err(mErr).Msg("falha ao marcar documento como ERROR")
		}
		return fail("submit", CodeInternal, msg)
	}
	log = log.With().Str("cstat", auth.Status).Logger()

	switch {
	case auth.IsConnectionError():
		// Sin determinación: queda PROCESSING para el barrido de reconciliación.
		if mErr := e.final.markStatus(ctx, doc, entity.DocumentStatusProcessing, auth.Status, auth.Message); mErr != nil {
			log.Error().Err(mErr).Msg("falha ao registrar erro de conexão")
		}
		return fail("submit", auth.Status, auth.Message)

	case auth.Success:
		err := e.final.authorize(ctx, doc, verdict{
			Status:       auth.Status,
			Message:      auth.Message,
			Protocol:     auth.Protocol,
			AuthorizedAt: auth.AuthorizedAt,
			ProtNFe:      auth.ProtNFe,
			Raw:          auth.RawResponse,
		})
		if err != nil {
			return fail("finalize", CodeInternal, err.Error())
		}
		log.Info().Str("protocol", doc.Protocol).Msg("NFC-e autorizada")
		return EmissionResult{
			Success:    true,
			Status:     doc.Status,
			Code:       doc.StatusCode,
			Message:    doc.StatusMessage,
			DocumentID: doc.ID,
			AccessKey:  doc.AccessKey,
			Protocol:   doc.Protocol,
			XMLPath:    doc.XMLPath,
			PDFPath:    doc.PDFPath,
			TraceID:    traceID,
		}

	default:
		err := e.final.reject(ctx, doc, verdict{
			Status:  auth.Status,
			Message: auth.Message,
			ProtNFe: auth.ProtNFe,
			Raw:     auth.RawResponse,
		})
		if err != nil {
			return fail("finalize", CodeInternal, err.Error())
		}
		log.Warn().Str("reason", auth.Message).Msg("NFC-e rejeitada pela SEFAZ")
		return EmissionResult{
			Success:    false,
			Status:     doc.Status,
			Code:       doc.StatusCode,
			Message:    doc.StatusMessage,
			DocumentID: doc.ID,
			AccessKey:  doc.AccessKey,
			TraceID:    traceID,
		}
	}
}

// prepare corre dentro de la transacción de emisión.
func (e *Emitter) prepare(
	ctx context.Context,
	sale *entity.Sale,
	profiles repository.FiscalProfileRepository,
	docs repository.IssuedDocumentRepository,
) (prepared, error) {
	var out prepared

	profile, err := profiles.GetActiveForUpdate(ctx)
	if err != nil {
		return out, fmt.Errorf("carregar perfil fiscal: %w", err)
	}
	if profile == nil {
		return out, domain.ErrNoActiveProfile
	}
	out.profile = profile

	// ── Idempotencia: un documento por venta; ERROR no bloquea la reemisión ──
	existing, err := docs.GetBySaleID(ctx, sale.ID)
	if err != nil {
		return out, fmt.Errorf("verificar emissão anterior: %w", err)
	}
	if existing != nil {
		if existing.Status != entity.DocumentStatusError {
			out.existing = existing
			return out, domain.ErrAlreadyEmitted
		}
		if err := docs.Delete(ctx, existing.ID); err != nil {
			return out, fmt.Errorf("descartar documento em ERROR: %w", err)
		}
	}

	// ── Número: nunca reutilizar uno que sigue en PROCESSING, aunque sea de un perfil reemplazado ──
	pending, err := docs.MaxProcessingNumber(ctx, profile.CNPJ, profile.Series)
	if err != nil {
		return out, fmt.Errorf("consultar numeração pendente: %w", err)
	}
	number := max(profile.LastNumber, pending) + 1

	cNF, err := pkgfiscal.RandomCode()
	if err != nil {
		return out, err
	}
	region, ok := pkgfiscal.UFCode(profile.UF)
	if !ok {
		return out, fmt.Errorf("UF inválida no perfil fiscal: %q", profile.UF)
	}
	key, err := pkgfiscal.GenerateAccessKey(pkgfiscal.AccessKeyParams{
		Region:       region,
		YearMonth:    pkgfiscal.YearMonth(sale.CreatedAt),
		TaxID:        profile.CNPJ,
		Model:        pkgfiscal.ModelNFCe,
		Series:       profile.Series,
		Number:       number,
		EmissionType: profile.EmissionType(),
		RandomCode:   cNF,
	})
	if err != nil {
		return out, err
	}

	// ── XML, firma y QR Code ──
	unsigned, err := e.builder.Build(&nfce.BuildInput{
		Sale:       sale,
		Profile:    profile,
		Number:     number,
		AccessKey:  key,
		RandomCode: cNF,
	})
	if err != nil {
		return out, err
	}
	material, err := loadMaterial(e.certs, e.secrets, profile)
	if err != nil {
		return out, err
	}
	out.material = material
	signed, err := e.signer.Sign(unsigned, material, signer.DefaultTarget)
	if err != nil {
		return out, err
	}
	csc, err := e.secrets.Reveal(profile.CSCToken)
	if err != nil {
		return out, fmt.Errorf("descriptografar CSC: %w", err)
	}
	final, err := nfce.AddSupplementaryInfo(signed, profile, key, csc)
	if err != nil {
		return out, err
	}

	// ── Registro PROCESSING con espejo de ítems ──
	totals := nfce.ComputeTotals(sale)
	now := e.now()
	doc := &entity.IssuedDocument{
		SaleID:        sale.ID,
		ProfileID:     profile.ID,
		Number:        number,
		Series:        profile.Series,
		Model:         entity.ModelNFCe,
		AccessKey:     key,
		RandomCode:    cNF,
		EmissionType:  profile.EmissionType(),
		Contingency:   profile.ContingencyMode,
		Status:        entity.DocumentStatusProcessing,
		XMLSent:       string(final),
		TotalValue:    totals.Total,
		ProductsValue: totals.Products,
		DiscountValue: totals.Discount,
		RecipientCPF:  pkgfiscal.OnlyDigits(sale.CPF),
		RecipientName: sale.CustomerName,
		Items:         mirrorItems(sale.Items),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := docs.Create(ctx, doc); err != nil {
		return out, err
	}
	out.doc = doc
	return out, nil
}

// ── helpers privados ──────────────────────────────────────────────────────────

// mirrorItems copia las líneas tal como quedaron declaradas en el XML.
func mirrorItems(items []entity.SaleItem) []entity.IssuedDocumentItem {
	out := make([]entity.IssuedDocumentItem, len(items))
	for i, it := range items {
		code := it.ProductCode
		if code == "" && it.ProductID != 0 {
			code = strconv.FormatInt(it.ProductID, 10)
		}
		if code == "" {
			code = strconv.Itoa(i + 1)
		}
		out[i] = entity.IssuedDocumentItem{
			ItemNumber:  i + 1,
			ProductCode: code,
			EAN:         nonEmpty(it.Barcode, nfce.NoGTIN),
			Description: it.Description,
			NCM:         nonEmpty(it.NCM, nfce.DefaultNCM),
			CFOP:        nfce.CFOPSale,
			Unit:        nonEmpty(it.Unit, nfce.DefaultUnit),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Total:       it.Subtotal.Round(2),
		}
	}
	return out
}
