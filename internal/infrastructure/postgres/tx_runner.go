package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appfiscal "github.com/jhoicas/nfce-emissor/internal/application/fiscal"
	"github.com/jhoicas/nfce-emissor/internal/domain/repository"
)

// Ensure TxRunner implements fiscal.TxRunner.
var _ appfiscal.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunFiscal inicia una transacción, ejecuta fn con los repos fiscales atados a la tx y hace Commit o Rollback.
// Se usa para la asignación de número + inserción PROCESSING y para la finalización (estado + last_number).
func (r *TxRunner) RunFiscal(ctx context.Context, fn func(
	profileRepo repository.FiscalProfileRepository,
	docRepo repository.IssuedDocumentRepository,
) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewFiscalProfileRepository(tx), NewIssuedDocumentRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
