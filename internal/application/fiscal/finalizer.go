package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	"github.com/jhoicas/nfce-emissor/internal/domain/repository"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce"
	"github.com/jhoicas/nfce-emissor/pkg/logger"
)

// verdict es la determinación de la SEFAZ sobre un documento (autorización o consulta).
type verdict struct {
	Status       string
	Message      string
	Protocol     string
	AuthorizedAt *time.Time
	ProtNFe      string
	Raw          string
}

// finalizer cierra documentos en PROCESSING. Lo comparten el Emitter y el Reconciler
// para que una autorización tardía siga exactamente el mismo camino.
type finalizer struct {
	tx              TxRunner
	docs            repository.IssuedDocumentRepository
	renderer        DanfeRenderer
	store           ArtifactStore
	advanceOnReject bool
	now             func() time.Time
	log             *logger.Logger
}

// authorize pasa el documento a AUTHORIZED y avanza la numeración en una sola transacción.
// Después guarda el nfeProc y la DANFE; un fallo en los artefactos solo se registra.
func (f *finalizer) authorize(ctx context.Context, doc *entity.IssuedDocument, v verdict) error {
	doc.Status = entity.DocumentStatusAuthorized
	doc.StatusCode = v.Status
	doc.StatusMessage = v.Message
	doc.Protocol = v.Protocol
	doc.AuthorizedAt = v.AuthorizedAt
	if doc.AuthorizedAt == nil {
		at := f.now()
		doc.AuthorizedAt = &at
	}
	doc.XMLResponse = nonEmpty(v.ProtNFe, v.Raw)
	doc.XMLFull = string(nfce.BuildProcXML([]byte(doc.XMLSent), v.ProtNFe))
	doc.UpdatedAt = f.now()

	err := f.tx.RunFiscal(ctx, func(profiles repository.FiscalProfileRepository, docs repository.IssuedDocumentRepository) error {
		if err := docs.UpdateResult(ctx, doc); err != nil {
			return err
		}
		return advanceNumbering(ctx, profiles, doc)
	})
	if err != nil {
		return fmt.Errorf("persistir autorização: %w", err)
	}

	f.saveArtifacts(ctx, doc)
	return nil
}

// reject pasa el documento a REJECTED. La numeración solo avanza con advanceOnReject.
func (f *finalizer) reject(ctx context.Context, doc *entity.IssuedDocument, v verdict) error {
	doc.Status = entity.DocumentStatusRejected
	doc.StatusCode = v.Status
	doc.StatusMessage = v.Message
	doc.XMLResponse = nonEmpty(v.ProtNFe, v.Raw)
	doc.UpdatedAt = f.now()

	err := f.tx.RunFiscal(ctx, func(profiles repository.FiscalProfileRepository, docs repository.IssuedDocumentRepository) error {
		if err := docs.UpdateResult(ctx, doc); err != nil {
			return err
		}
		if f.advanceOnReject {
			return advanceNumbering(ctx, profiles, doc)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persistir rejeição: %w", err)
	}
	return nil
}

// markStatus actualiza estado y mensaje sin tocar la numeración (ERROR o PROCESSING con 999).
func (f *finalizer) markStatus(ctx context.Context, doc *entity.IssuedDocument, status, code, msg string) error {
	doc.Status = status
	doc.StatusCode = code
	doc.StatusMessage = msg
	doc.UpdatedAt = f.now()
	if err := f.docs.UpdateResult(ctx, doc); err != nil {
		return fmt.Errorf("persistir estado %s: %w", status, err)
	}
	return nil
}

// saveArtifacts escribe <chave>.xml y <chave>.pdf y registra las rutas en el documento.
func (f *finalizer) saveArtifacts(ctx context.Context, doc *entity.IssuedDocument) {
	log := f.log.With().Int64("document_id", doc.ID).Str("access_key", doc.AccessKey).Logger()
	at := artifactTime(doc)

	xmlPath, err := f.store.SaveXML(ctx, doc.AccessKey, at, []byte(doc.XMLFull))
	if err != nil {
		log.Error().Err(err).Msg("falha ao salvar XML autorizado")
		return
	}
	doc.XMLPath = xmlPath

	if pdf, err := f.renderer.Render(ctx, []byte(doc.XMLFull)); err != nil {
		log.Error().Err(err).Msg("falha ao gerar DANFE")
	} else if pdfPath, err := f.store.SavePDF(ctx, doc.AccessKey, at, pdf); err != nil {
		log.Error().Err(err).Msg("falha ao salvar DANFE")
	} else {
		doc.PDFPath = pdfPath
	}

	if err := f.docs.UpdateArtifacts(ctx, doc.ID, doc.XMLPath, doc.PDFPath); err != nil {
		log.Error().Err(err).Msg("falha ao registrar caminhos dos artefatos")
	}
}

// advanceNumbering avanza la numeración del CNPJ y la serie del documento. El perfil que lo
// emitió puede haber sido reemplazado; el avance llega igual al perfil activo.
func advanceNumbering(ctx context.Context, profiles repository.FiscalProfileRepository, doc *entity.IssuedDocument) error {
	p, err := profiles.GetByID(ctx, doc.ProfileID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("perfil fiscal %d do documento não encontrado", doc.ProfileID)
	}
	return profiles.AdvanceLastNumber(ctx, p.CNPJ, doc.Series, doc.Number)
}

// artifactTime fecha que define la partición YYYY/MM de los artefactos.
func artifactTime(doc *entity.IssuedDocument) time.Time {
	if doc.AuthorizedAt != nil {
		return *doc.AuthorizedAt
	}
	return doc.CreatedAt
}

func nonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
