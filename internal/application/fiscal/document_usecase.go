package fiscal

import (
	"context"
	"fmt"

	"github.com/jhoicas/nfce-emissor/internal/application/dto"
	"github.com/jhoicas/nfce-emissor/internal/domain"
	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	"github.com/jhoicas/nfce-emissor/internal/domain/repository"
	"github.com/jhoicas/nfce-emissor/pkg/logger"
)

var documentStatuses = map[string]bool{
	entity.DocumentStatusProcessing: true,
	entity.DocumentStatusAuthorized: true,
	entity.DocumentStatusRejected:   true,
	entity.DocumentStatusError:      true,
}

// DocumentUseCase consultas y descargas de NFC-e emitidas.
type DocumentUseCase struct {
	docs       repository.IssuedDocumentRepository
	profiles   repository.FiscalProfileRepository
	pdf        DanfeRenderer
	text       TextRenderer
	store      ArtifactStore
	reconciler *Reconciler
	log        *logger.Logger
}

// NewDocumentUseCase construye el caso de uso.
func NewDocumentUseCase(
	docs repository.IssuedDocumentRepository,
	profiles repository.FiscalProfileRepository,
	pdf DanfeRenderer,
	text TextRenderer,
	store ArtifactStore,
	reconciler *Reconciler,
	log *logger.Logger,
) *DocumentUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentUseCase{
		docs:       docs,
		profiles:   profiles,
		pdf:        pdf,
		text:       text,
		store:      store,
		reconciler: reconciler,
		log:        log.Component("documents"),
	}
}

// GetByID devuelve el documento con sus ítems. domain.ErrNotFound si no existe.
func (uc *DocumentUseCase) GetByID(ctx context.Context, id int64) (*dto.DocumentResponse, error) {
	doc, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return uc.withItems(ctx, doc)
}

// GetBySaleID devuelve el documento de la venta. domain.ErrNotFound si la venta no tiene NFC-e.
func (uc *DocumentUseCase) GetBySaleID(ctx context.Context, saleID int64) (*dto.DocumentResponse, error) {
	doc, err := uc.docs.GetBySaleID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	return uc.withItems(ctx, doc)
}

// List lista documentos paginados, opcionalmente filtrados por estado.
func (uc *DocumentUseCase) List(ctx context.Context, in dto.DocumentFilterRequest) (*dto.DocumentListResponse, error) {
	in.DefaultPage()
	if in.Status != "" && !documentStatuses[in.Status] {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidInput, in.Status)
	}
	list, total, err := uc.docs.List(ctx, repository.DocumentFilter{Status: in.Status, Limit: in.Limit, Offset: in.Offset})
	if err != nil {
		return nil, err
	}
	items := make([]dto.DocumentResponse, 0, len(list))
	for _, d := range list {
		items = append(items, *entityToDocumentResponse(d))
	}
	return &dto.DocumentListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: in.Limit, Offset: in.Offset, Total: total},
	}, nil
}

// XML devuelve el nfeProc autorizado; para documentos no autorizados, el XML enviado.
func (uc *DocumentUseCase) XML(ctx context.Context, id int64) ([]byte, string, error) {
	doc, err := uc.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	name := doc.AccessKey + ".xml"
	if doc.XMLPath != "" {
		if data, err := uc.store.Read(ctx, doc.XMLPath); err == nil {
			return data, name, nil
		}
	}
	switch {
	case doc.XMLFull != "":
		return []byte(doc.XMLFull), name, nil
	case doc.XMLSent != "":
		return []byte(doc.XMLSent), name, nil
	}
	return nil, "", fmt.Errorf("%w: XML do documento %d", domain.ErrNotFound, id)
}

// PDF devuelve la DANFE. Si el archivo falta se vuelve a generar desde el nfeProc guardado.
func (uc *DocumentUseCase) PDF(ctx context.Context, id int64) ([]byte, string, error) {
	doc, err := uc.authorized(ctx, id)
	if err != nil {
		return nil, "", err
	}
	name := doc.AccessKey + ".pdf"
	if doc.PDFPath != "" {
		if data, err := uc.store.Read(ctx, doc.PDFPath); err == nil {
			return data, name, nil
		}
	}

	data, err := uc.pdf.Render(ctx, []byte(doc.XMLFull))
	if err != nil {
		return nil, "", err
	}
	path, err := uc.store.SavePDF(ctx, doc.AccessKey, artifactTime(doc), data)
	if err != nil {
		uc.log.Error().Err(err).Int64("document_id", id).Msg("falha ao salvar DANFE regenerada")
		return data, name, nil
	}
	if err := uc.docs.UpdateArtifacts(ctx, doc.ID, "", path); err != nil {
		uc.log.Error().Err(err).Int64("document_id", id).Msg("falha ao registrar DANFE regenerada")
	}
	return data, name, nil
}

// Text devuelve la DANFE en texto plano (UTF-8).
func (uc *DocumentUseCase) Text(ctx context.Context, id int64) (string, error) {
	doc, err := uc.authorized(ctx, id)
	if err != nil {
		return "", err
	}
	return uc.text.RenderString([]byte(doc.XMLFull))
}

// Consult consulta la situación del documento en la SEFAZ. Si estaba en PROCESSING se aplica
// el veredicto igual que en el barrido.
func (uc *DocumentUseCase) Consult(ctx context.Context, id int64) (*dto.ConsultResponse, error) {
	doc, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	profile, err := uc.profiles.GetByID(ctx, doc.ProfileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrNoActiveProfile
	}
	res, err := uc.reconciler.Reconcile(ctx, doc, profile)
	if err != nil {
		return nil, err
	}
	return &dto.ConsultResponse{
		DocumentID:     doc.ID,
		AccessKey:      doc.AccessKey,
		Status:         res.Status,
		Message:        res.Message,
		ProtStatus:     res.ProtStatus,
		ProtMessage:    res.ProtMessage,
		Protocol:       res.Protocol,
		AuthorizedAt:   res.AuthorizedAt,
		DocumentStatus: doc.Status,
	}, nil
}

// ── helpers privados ──────────────────────────────────────────────────────────

func (uc *DocumentUseCase) load(ctx context.Context, id int64) (*entity.IssuedDocument, error) {
	doc, err := uc.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

// authorized exige un documento AUTHORIZED con nfeProc.
func (uc *DocumentUseCase) authorized(ctx context.Context, id int64) (*entity.IssuedDocument, error) {
	doc, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != entity.DocumentStatusAuthorized || doc.XMLFull == "" {
		return nil, fmt.Errorf("%w: DANFE disponível apenas para NFC-e autorizada (status %s)", domain.ErrConflict, doc.Status)
	}
	return doc, nil
}

func (uc *DocumentUseCase) withItems(ctx context.Context, doc *entity.IssuedDocument) (*dto.DocumentResponse, error) {
	items, err := uc.docs.GetItems(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.Items = items
	return entityToDocumentResponse(doc), nil
}
