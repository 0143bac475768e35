package fiscal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/nfce-emissor/internal/application/dto"
	"github.com/jhoicas/nfce-emissor/internal/domain"
	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	"github.com/jhoicas/nfce-emissor/internal/domain/repository"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce"
	pkgfiscal "github.com/jhoicas/nfce-emissor/pkg/fiscal"
	"github.com/jhoicas/nfce-emissor/pkg/logger"
)

// Valores por defecto del barrido.
const (
	DefaultProcessingTimeout = 10 * time.Minute
	DefaultStatusTimeout     = 10 * time.Second
	SweepBatchSize           = 50
)

// ReconcilerConfig parámetros del barrido de documentos en PROCESSING.
type ReconcilerConfig struct {
	ProcessingTimeout time.Duration // antigüedad mínima para reconsultar
	StatusTimeout     time.Duration // timeout de cada consulta a la SEFAZ
	AdvanceOnReject   bool
}

// Reconciler resuelve documentos que quedaron en PROCESSING (caída entre la inserción y la
// respuesta de la SEFAZ, o sin conexión) consultando el protocolo por la clave de acceso:
//
//	cStat 100           → AUTHORIZED (mismo camino que la emisión: numeración + artefactos)
//	cStat 217           → ERROR (la SEFAZ no conoce la nota; la venta puede reemitirse)
//	999 / 108 / 109     → sigue PROCESSING
//	otro cStat          → REJECTED
type Reconciler struct {
	profiles repository.FiscalProfileRepository
	docs     repository.IssuedDocumentRepository
	certs    CertificateLoader
	sefaz    SefazGateway
	secrets  SecretSealer
	final    *finalizer
	cfg      ReconcilerConfig
	now      func() time.Time
	log      *logger.Logger
}

// NewReconciler construye el barrido.
func NewReconciler(
	tx TxRunner,
	profiles repository.FiscalProfileRepository,
	docs repository.IssuedDocumentRepository,
	certs CertificateLoader,
	sefaz SefazGateway,
	secrets SecretSealer,
	renderer DanfeRenderer,
	store ArtifactStore,
	cfg ReconcilerConfig,
	log *logger.Logger,
) *Reconciler {
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = DefaultProcessingTimeout
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = DefaultStatusTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("reconciler")
	return &Reconciler{
		profiles: profiles,
		docs:     docs,
		certs:    certs,
		sefaz:    sefaz,
		secrets:  secrets,
		final: &finalizer{
			tx:              tx,
			docs:            docs,
			renderer:        renderer,
			store:           store,
			advanceOnReject: cfg.AdvanceOnReject,
			now:             time.Now,
			log:             log,
		},
		cfg: cfg,
		now: time.Now,
		log: log,
	}
}

// SetClock reemplaza el reloj (tests).
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
	r.final.now = now
}

// Sweep procesa un lote de documentos en PROCESSING más antiguos que ProcessingTimeout.
// Un error en un documento no detiene el barrido; solo se devuelve error si no se pudo listar.
func (r *Reconciler) Sweep(ctx context.Context) (*dto.ReconcileResponse, error) {
	olderThan := r.now().Add(-r.cfg.ProcessingTimeout)
	stale, err := r.docs.ListStaleProcessing(ctx, olderThan, SweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("listar documentos em PROCESSING: %w", err)
	}

	report := &dto.ReconcileResponse{}
	profiles := map[int64]*entity.FiscalProfile{}
	for _, doc := range stale {
		report.Checked++
		log := r.log.With().Int64("document_id", doc.ID).Str("access_key", doc.AccessKey).Logger()

		profile, ok := profiles[doc.ProfileID]
		if !ok {
			profile, err = r.profiles.GetByID(ctx, doc.ProfileID)
			if err != nil || profile == nil {
				log.Error().Err(err).Int64("profile_id", doc.ProfileID).Msg("perfil fiscal do documento não encontrado")
				report.Pending++
				continue
			}
			profiles[doc.ProfileID] = profile
		}

		status, err := r.resolve(ctx, doc, profile)
		if err != nil {
			log.Error().Err(err).Msg("falha ao reconciliar documento")
			report.Pending++
			continue
		}
		switch status {
		case entity.DocumentStatusAuthorized:
			report.Authorized++
		case entity.DocumentStatusRejected:
			report.Rejected++
		case entity.DocumentStatusError:
			report.Errored++
		default:
			report.Pending++
		}
		log.Info().Str("status", status).Msg("documento reconciliado")
	}
	return report, nil
}

// Run ejecuta Sweep cada interval hasta que ctx se cancele. interval <= 0 no hace nada.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := r.Sweep(ctx)
			if err != nil {
				r.log.Error().Err(err).Msg("barrido de reconciliação falhou")
				continue
			}
			if report.Checked > 0 {
				r.log.Info().
					Int("checked", report.Checked).
					Int("authorized", report.Authorized).
					Int("rejected", report.Rejected).
					Int("errored", report.Errored).
					Int("pending", report.Pending).
					Msg("barrido de reconciliação concluído")
			}
		}
	}
}

// Reconcile consulta un documento puntual (sin importar su antigüedad) y, si sigue en
// PROCESSING, aplica el veredicto de la SEFAZ. doc.Status queda con el estado resultante.
// Si otra consulta resolvió el documento antes, no se escribe nada y doc refleja lo persistido.
func (r *Reconciler) Reconcile(ctx context.Context, doc *entity.IssuedDocument, profile *entity.FiscalProfile) (*nfce.ConsultResult, error) {
	cert, err := clientCertificate(r.certs, r.secrets, profile)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, r.cfg.StatusTimeout)
	defer cancel()
	res, err := r.sefaz.ConsultByAccessKey(cctx, doc.AccessKey, profile.UF, profile.Environment, cert)
	if err != nil {
		return nil, err
	}
	if doc.Status != entity.DocumentStatusProcessing {
		return res, nil
	}
	if err := r.apply(ctx, doc, res); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return res, err
		}
		cur, gErr := r.docs.GetByID(ctx, doc.ID)
		if gErr != nil {
			return res, gErr
		}
		if cur != nil {
			*doc = *cur
		}
		r.log.Debug().Int64("document_id", doc.ID).Str("status", doc.Status).Msg("documento já resolvido por outra consulta")
	}
	return res, nil
}

func (r *Reconciler) resolve(ctx context.Context, doc *entity.IssuedDocument, profile *entity.FiscalProfile) (string, error) {
	if _, err := r.Reconcile(ctx, doc, profile); err != nil {
		return doc.Status, err
	}
	return doc.Status, nil
}

// apply traduce la consulta al estado del documento.
func (r *Reconciler) apply(ctx context.Context, doc *entity.IssuedDocument, res *nfce.ConsultResult) error {
	switch {
	case res.IsAuthorized():
		return r.final.authorize(ctx, doc, verdict{
			Status:       pkgfiscal.StatusAuthorized,
			Message:      nonEmpty(res.ProtMessage, res.Message),
			Protocol:     res.Protocol,
			AuthorizedAt: res.AuthorizedAt,
			ProtNFe:      res.ProtNFe,
			Raw:          res.RawResponse,
		})
	case res.Status == pkgfiscal.StatusNotFound:
		return r.final.markStatus(ctx, doc, entity.DocumentStatusError, res.Status, res.Message)
	case isUndetermined(res.Status):
		return nil
	default:
		code, msg := res.Status, res.Message
		if res.ProtStatus != "" {
			code, msg = res.ProtStatus, res.ProtMessage
		}
		return r.final.reject(ctx, doc, verdict{Status: code, Message: msg, ProtNFe: res.ProtNFe, Raw: res.RawResponse})
	}
}

// isUndetermined códigos que no dicen nada sobre la nota (sin conexión o servicio paralizado).
func isUndetermined(cStat string) bool {
	switch cStat {
	case pkgfiscal.StatusConnectionError, pkgfiscal.StatusServiceStopped, pkgfiscal.StatusServiceDown, "":
		return true
	}
	return false
}
