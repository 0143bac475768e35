package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/nfce-emissor/internal/domain"
	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	"github.com/jhoicas/nfce-emissor/internal/domain/repository"
)

var _ repository.IssuedDocumentRepository = (*IssuedDocumentRepo)(nil)

// IssuedDocumentRepo implementa IssuedDocumentRepository sobre PostgreSQL (pool o tx).
type IssuedDocumentRepo struct {
	q Querier
}

// NewIssuedDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewIssuedDocumentRepository(q Querier) *IssuedDocumentRepo {
	return &IssuedDocumentRepo{q: q}
}

const documentColumns = `
	id, sale_id, profile_id, number, series, model, access_key, random_code, emission_type, contingency,
	status, status_code, status_message, protocol, authorized_at,
	xml_sent, xml_response, xml_full,
	total_value, products_value, discount_value, recipient_cpf, recipient_name,
	xml_path, pdf_path, created_at, updated_at`

// documentListColumns omite los XML para que el listado sea liviano.
var documentListColumns = strings.NewReplacer(
	"xml_sent, xml_response, xml_full", "'' AS xml_sent, '' AS xml_response, '' AS xml_full",
).Replace(documentColumns)

// Create inserta cabecera e ítems. Los ítems van en un batch sobre la misma conexión.
func (r *IssuedDocumentRepo) Create(ctx context.Context, doc *entity.IssuedDocument) error {
	const q = `
		INSERT INTO issued_documents
			(sale_id, profile_id, number, series, model, access_key, random_code, emission_type, contingency,
			 status, status_code, status_message, protocol, authorized_at,
			 xml_sent, xml_response, xml_full,
			 total_value, products_value, discount_value, recipient_cpf, recipient_name,
			 xml_path, pdf_path, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			 $18, $19, $20, $21, $22, $23, $24, now(), now())
		RETURNING id, created_at, updated_at`
	err := r.q.QueryRow(ctx, q,
		doc.SaleID, doc.ProfileID, doc.Number, doc.Series, doc.Model, doc.AccessKey, doc.RandomCode,
		doc.EmissionType, doc.Contingency,
		doc.Status, doc.StatusCode, doc.StatusMessage, doc.Protocol, doc.AuthorizedAt,
		doc.XMLSent, doc.XMLResponse, doc.XMLFull,
		doc.TotalValue, doc.ProductsValue, doc.DiscountValue, doc.RecipientCPF, doc.RecipientName,
		doc.XMLPath, doc.PDFPath,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: documento fiscal para la venta %d", domain.ErrDuplicate, doc.SaleID)
		}
		return fmt.Errorf("insert issued_document: %w", err)
	}

	if len(doc.Items) == 0 {
		return nil
	}
	const qi = `
		INSERT INTO issued_document_items
			(document_id, item_number, product_code, ean, description, ncm, cfop, unit, quantity, unit_price, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	batch := &pgx.Batch{}
	for i := range doc.Items {
		it := &doc.Items[i]
		it.DocumentID = doc.ID
		batch.Queue(qi,
			it.DocumentID, it.ItemNumber, it.ProductCode, it.EAN, it.Description, it.NCM, it.CFOP, it.Unit,
			it.Quantity, it.UnitPrice, it.Total,
		)
	}
	br := r.q.SendBatch(ctx, batch)
	defer br.Close()
	for i := range doc.Items {
		if err := br.QueryRow().Scan(&doc.Items[i].ID); err != nil {
			return fmt.Errorf("insert issued_document_item %d: %w", doc.Items[i].ItemNumber, err)
		}
	}
	return br.Close()
}

func (r *IssuedDocumentRepo) GetByID(ctx context.Context, id int64) (*entity.IssuedDocument, error) {
	return r.getOne(ctx, `SELECT `+documentColumns+` FROM issued_documents WHERE id = $1`, id)
}

func (r *IssuedDocumentRepo) GetBySaleID(ctx context.Context, saleID int64) (*entity.IssuedDocument, error) {
	return r.getOne(ctx, `SELECT `+documentColumns+` FROM issued_documents WHERE sale_id = $1`, saleID)
}

func (r *IssuedDocumentRepo) GetItems(ctx context.Context, documentID int64) ([]entity.IssuedDocumentItem, error) {
	const q = `
		SELECT id, document_id, item_number, product_code, ean, description, ncm, cfop, unit,
		       quantity, unit_price, total
		FROM issued_document_items WHERE document_id = $1 ORDER BY item_number`
	rows, err := r.q.Query(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("list issued_document_items: %w", err)
	}
	defer rows.Close()
	var list []entity.IssuedDocumentItem
	for rows.Next() {
		var it entity.IssuedDocumentItem
		if err := rows.Scan(
			&it.ID, &it.DocumentID, &it.ItemNumber, &it.ProductCode, &it.EAN, &it.Description,
			&it.NCM, &it.CFOP, &it.Unit, &it.Quantity, &it.UnitPrice, &it.Total,
		); err != nil {
			return nil, fmt.Errorf("scan issued_document_item: %w", err)
		}
		list = append(list, it)
	}
	return list, rows.Err()
}

// List devuelve la página pedida (sin XML) y el total de filas que cumplen el filtro.
func (r *IssuedDocumentRepo) List(ctx context.Context, f repository.DocumentFilter) ([]*entity.IssuedDocument, int, error) {
	var total int
	if err := r.q.QueryRow(ctx,
		`SELECT count(*) FROM issued_documents WHERE ($1 = '' OR status = $1)`, f.Status,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count issued_documents: %w", err)
	}

	q := `SELECT ` + documentListColumns + `
		FROM issued_documents
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	docs, err := r.queryMany(ctx, q, f.Status, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// UpdateResult persiste la respuesta de la SEFAZ. Solo escribe documentos en PROCESSING;
// uno ya resuelto devuelve domain.ErrConflict.
func (r *IssuedDocumentRepo) UpdateResult(ctx context.Context, doc *entity.IssuedDocument) error {
	const q = `
		UPDATE issued_documents
		SET status         = $2,
		    status_code    = $3,
		    status_message = $4,
		    protocol       = $5,
		    authorized_at  = $6,
		    xml_response   = $7,
		    xml_full       = $8,
		    updated_at     = now()
		WHERE id = $1 AND status = 'PROCESSING'
		RETURNING updated_at`
	err := r.q.QueryRow(ctx, q,
		doc.ID, doc.Status, doc.StatusCode, doc.StatusMessage, doc.Protocol, doc.AuthorizedAt,
		doc.XMLResponse, doc.XMLFull,
	).Scan(&doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: documento %d já não está em PROCESSING", domain.ErrConflict, doc.ID)
		}
		return fmt.Errorf("update issued_document: %w", err)
	}
	return nil
}

func (r *IssuedDocumentRepo) UpdateArtifacts(ctx context.Context, id int64, xmlPath, pdfPath string) error {
	const q = `
		UPDATE issued_documents
		SET xml_path   = COALESCE(NULLIF($2, ''), xml_path),
		    pdf_path   = COALESCE(NULLIF($3, ''), pdf_path),
		    updated_at = now()
		WHERE id = $1`
	if _, err := r.q.Exec(ctx, q, id, xmlPath, pdfPath); err != nil {
		return fmt.Errorf("update issued_document artifacts: %w", err)
	}
	return nil
}

// Delete borra el documento; los ítems caen por ON DELETE CASCADE.
func (r *IssuedDocumentRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM issued_documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete issued_document: %w", err)
	}
	return nil
}

func (r *IssuedDocumentRepo) MaxProcessingNumber(ctx context.Context, cnpj string, series int) (int64, error) {
	const q = `
		SELECT COALESCE(MAX(d.number), 0)
		FROM issued_documents d
		JOIN fiscal_profiles p ON p.id = d.profile_id
		WHERE p.cnpj = $1 AND d.series = $2 AND d.status = 'PROCESSING'`
	var n int64
	if err := r.q.QueryRow(ctx, q, cnpj, series).Scan(&n); err != nil {
		return 0, fmt.Errorf("max processing number: %w", err)
	}
	return n, nil
}

func (r *IssuedDocumentRepo) ListStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]*entity.IssuedDocument, error) {
	q := `SELECT ` + documentColumns + `
		FROM issued_documents
		WHERE status = 'PROCESSING' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`
	return r.queryMany(ctx, q, olderThan, limit)
}

func (r *IssuedDocumentRepo) getOne(ctx context.Context, query string, args ...any) (*entity.IssuedDocument, error) {
	doc, err := scanDocument(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get issued_document: %w", err)
	}
	return doc, nil
}

func (r *IssuedDocumentRepo) queryMany(ctx context.Context, query string, args ...any) ([]*entity.IssuedDocument, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issued_documents: %w", err)
	}
	defer rows.Close()
	var list []*entity.IssuedDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issued_document: %w", err)
		}
		list = append(list, doc)
	}
	return list, rows.Err()
}

func scanDocument(row pgxScanner) (*entity.IssuedDocument, error) {
	var d entity.IssuedDocument
	err := row.Scan(
		&d.ID, &d.SaleID, &d.ProfileID, &d.Number, &d.Series, &d.Model, &d.AccessKey, &d.RandomCode,
		&d.EmissionType, &d.Contingency,
		&d.Status, &d.StatusCode, &d.StatusMessage, &d.Protocol, &d.AuthorizedAt,
		&d.XMLSent, &d.XMLResponse, &d.XMLFull,
		&d.TotalValue, &d.ProductsValue, &d.DiscountValue, &d.RecipientCPF, &d.RecipientName,
		&d.XMLPath, &d.PDFPath, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
