package repository

import (
	"context"
	"time"

	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
)

// DocumentFilter filtra el listado de documentos emitidos.
type DocumentFilter struct {
	Status string // vacío = todos
	Limit  int
	Offset int
}

// IssuedDocumentRepository define el puerto de persistencia de las NFC-e emitidas y sus ítems.
type IssuedDocumentRepository interface {
	// Create inserta la cabecera y los ítems; asigna doc.ID.
	// Devuelve domain.ErrDuplicate si ya existe un documento para la venta o la clave de acceso.
	Create(ctx context.Context, doc *entity.IssuedDocument) error
	GetByID(ctx context.Context, id int64) (*entity.IssuedDocument, error)
	GetBySaleID(ctx context.Context, saleID int64) (*entity.IssuedDocument, error)
	GetItems(ctx context.Context, documentID int64) ([]entity.IssuedDocumentItem, error)
	List(ctx context.Context, f DocumentFilter) ([]*entity.IssuedDocument, int, error)

	// UpdateResult persiste el resultado de la SEFAZ: status, cStat, xMotivo, protocolo y XML.
	// Solo actualiza documentos en PROCESSING; si ya fue resuelto devuelve domain.ErrConflict.
	UpdateResult(ctx context.Context, doc *entity.IssuedDocument) error
	UpdateArtifacts(ctx context.Context, id int64, xmlPath, pdfPath string) error
	Delete(ctx context.Context, id int64) error

	// MaxProcessingNumber devuelve el mayor número en PROCESSING del CNPJ emisor y la serie,
	// cualquiera sea el perfil que lo emitió (0 si no hay).
	MaxProcessingNumber(ctx context.Context, cnpj string, series int) (int64, error)

	// ListStaleProcessing lista documentos en PROCESSING creados antes de olderThan.
	ListStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]*entity.IssuedDocument, error)
}
