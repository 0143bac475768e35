// Package bootstrap arma el grafo de dependencias del módulo fiscal a partir de la configuración.
// Lo comparten cmd/api y cmd/fiscalctl.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	appfiscal "github.com/jhoicas/nfce-emissor/internal/application/fiscal"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/cache"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce/signer"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/pdf"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/postgres"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/storage"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/vault"
	"github.com/jhoicas/nfce-emissor/pkg/config"
	"github.com/jhoicas/nfce-emissor/pkg/logger"
)

// Fiscal agrupa los casos de uso listos para usar.
type Fiscal struct {
	Pool       *pgxpool.Pool
	Vault      *vault.Vault
	Emitter    *appfiscal.Emitter
	Reconciler *appfiscal.Reconciler
	Config     *appfiscal.ConfigUseCase
	Documents  *appfiscal.DocumentUseCase
	Status     *appfiscal.StatusUseCase
	Sefaz      *nfce.SefazClient
}

// Close libera el pool de conexiones y las conexiones ociosas con la SEFAZ.
func (f *Fiscal) Close() {
	if f.Sefaz != nil {
		f.Sefaz.CloseIdleConnections()
	}
	if f.Pool != nil {
		f.Pool.Close()
	}
}

// NewFiscal conecta a PostgreSQL, asegura el esquema y construye emisor, barrido y consultas.
func NewFiscal(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Fiscal, error) {
	v, err := vault.New(cfg.Fiscal.EncryptionKey)
	if err != nil {
		return nil, err
	}
	canon, err := signer.NewCanonicalizer(cfg.Fiscal.Canonicalization)
	if err != nil {
		return nil, err
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("esquema fiscal: %w", err)
	}

	txRunner := postgres.NewTxRunner(pool)
	profileRepo := postgres.NewFiscalProfileRepository(pool)
	documentRepo := postgres.NewIssuedDocumentRepository(pool)
	saleRepo := postgres.NewSaleRepository(pool)

	certs := signer.NewCertificateLoader(v, cache.NewTTLCache[string, *signer.Material](), cfg.Fiscal.CertCacheTTL)
	builder := nfce.NewXMLBuilderService(nfce.BuilderOptions{
		SoftwareVersion: cfg.Fiscal.SoftwareVersion,
		InfCplPrefix:    cfg.Fiscal.InfCplPrefix,
		Regimes:         nfce.NewRegimeRegistry(),
	})
	// Sin timeout propio: cada llamada queda acotada por el contexto del caso de uso.
	sefaz := nfce.NewSefazClient(nfce.WithEndpointResolver(nfce.ResolveEndpoint))
	store := storage.NewFSStore(cfg.Fiscal.StorageDir)
	danfe := pdf.NewMarotoDanfeRenderer()

	emitter := appfiscal.NewEmitter(
		txRunner, saleRepo, documentRepo, builder, certs, signer.NewService(canon),
		sefaz, v, danfe, store,
		appfiscal.EmitterConfig{
			SubmitTimeout:   cfg.Fiscal.SubmitTimeout,
			AdvanceOnReject: cfg.Fiscal.AdvanceOnReject,
		},
		log,
	)
	reconciler := appfiscal.NewReconciler(
		txRunner, profileRepo, documentRepo, certs, sefaz, v, danfe, store,
		appfiscal.ReconcilerConfig{
			ProcessingTimeout: cfg.Fiscal.ProcessingTimeout,
			StatusTimeout:     cfg.Fiscal.StatusTimeout,
			AdvanceOnReject:   cfg.Fiscal.AdvanceOnReject,
		},
		log,
	)

	return &Fiscal{
		Pool:       pool,
		Vault:      v,
		Emitter:    emitter,
		Reconciler: reconciler,
		Config:     appfiscal.NewConfigUseCase(txRunner, profileRepo, certs, v),
		Documents: appfiscal.NewDocumentUseCase(documentRepo, profileRepo, danfe,
			pdf.NewTextDanfeRenderer(pdf.DefaultColumns), store, reconciler, log),
		Status: appfiscal.NewStatusUseCase(profileRepo, certs, v, sefaz, cfg.Fiscal.StatusTimeout),
		Sefaz:  sefaz,
	}, nil
}
