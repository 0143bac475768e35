package fiscal_test

import (
	"context"
	"crypto/tls"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	appfiscal "github.com/jhoicas/nfce-emissor/internal/application/fiscal"
	"github.com/jhoicas/nfce-emissor/internal/domain"
	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	"github.com/jhoicas/nfce-emissor/internal/domain/repository"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce/signer"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce/signer/signertest"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/pdf"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/storage"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/vault"
	"github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

// ── Base en memoria con rollback por snapshot ─────────────────────────────────

type memDB struct {
	mu       sync.Mutex
	profiles map[int64]entity.FiscalProfile
	docs     map[int64]entity.IssuedDocument
	sales    map[int64]*entity.Sale
	nextID   int64
	updates  int // escrituras aceptadas por UpdateResult
}

func newMemDB() *memDB {
	return &memDB{
		profiles: map[int64]entity.FiscalProfile{},
		docs:     map[int64]entity.IssuedDocument{},
		sales:    map[int64]*entity.Sale{},
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) profile(id int64) entity.FiscalProfile {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.profiles[id]
}

func (db *memDB) doc(id int64) entity.IssuedDocument {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.docs[id]
}

func (db *memDB) docCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.docs)
}

func (db *memDB) docForSale(saleID int64) (entity.IssuedDocument, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, d := range db.docs {
		if d.SaleID == saleID {
			return d, true
		}
	}
	return entity.IssuedDocument{}, false
}

// txRunner serializa las transacciones y restaura el estado si fn falla.
type txRunner struct {
	db    *memDB
	txMu  sync.Mutex
	calls int
}

func (r *txRunner) RunFiscal(ctx context.Context, fn func(repository.FiscalProfileRepository, repository.IssuedDocumentRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	r.calls++

	r.db.mu.Lock()
	profiles := make(map[int64]entity.FiscalProfile, len(r.db.profiles))
	for k, v := range r.db.profiles {
		profiles[k] = v
	}
	docs := make(map[int64]entity.IssuedDocument, len(r.db.docs))
	for k, v := range r.db.docs {
		docs[k] = v
	}
	r.db.mu.Unlock()

	if err := fn(&profileRepo{db: r.db}, &docRepo{db: r.db}); err != nil {
		r.db.mu.Lock()
		r.db.profiles, r.db.docs = profiles, docs
		r.db.mu.Unlock()
		return err
	}
	return nil
}

type profileRepo struct{ db *memDB }

func (r *profileRepo) Create(_ context.Context, p *entity.FiscalProfile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p.ID = r.db.id()
	r.db.profiles[p.ID] = *p
	return nil
}

func (r *profileRepo) GetByID(_ context.Context, id int64) (*entity.FiscalProfile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *profileRepo) GetActive(_ context.Context) (*entity.FiscalProfile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.profiles {
		if p.Active {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *profileRepo) GetActiveForUpdate(ctx context.Context) (*entity.FiscalProfile, error) {
	return r.GetActive(ctx)
}

func (r *profileRepo) DeactivateAll(_ context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, p := range r.db.profiles {
		p.Active = false
		r.db.profiles[id] = p
	}
	return nil
}

func (r *profileRepo) AdvanceLastNumber(_ context.Context, cnpj string, series int, n int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	found := false
	for id, p := range r.db.profiles {
		if p.CNPJ != cnpj || p.Series != series {
			continue
		}
		found = true
		if n > p.LastNumber {
			p.LastNumber = n
		}
		r.db.profiles[id] = p
	}
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

func (r *profileRepo) MaxLastNumber(_ context.Context, cnpj string, series int) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, p := range r.db.profiles {
		if p.CNPJ == cnpj && p.Series == series && p.LastNumber > n {
			n = p.LastNumber
		}
	}
	return n, nil
}

type docRepo struct{ db *memDB }

func (r *docRepo) Create(_ context.Context, d *entity.IssuedDocument) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, other := range r.db.docs {
		if other.SaleID == d.SaleID || other.AccessKey == d.AccessKey {
			return fmt.Errorf("%w: documento fiscal para la venta %d", domain.ErrDuplicate, d.SaleID)
		}
	}
	d.ID = r.db.id()
	for i := range d.Items {
		d.Items[i].DocumentID = d.ID
		d.Items[i].ID = r.db.id()
	}
	r.db.docs[d.ID] = *d
	return nil
}

func (r *docRepo) GetByID(_ context.Context, id int64) (*entity.IssuedDocument, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *docRepo) GetBySaleID(_ context.Context, saleID int64) (*entity.IssuedDocument, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, d := range r.db.docs {
		if d.SaleID == saleID {
			return &d, nil
		}
	}
	return nil, nil
}

func (r *docRepo) GetItems(_ context.Context, documentID int64) ([]entity.IssuedDocumentItem, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return append([]entity.IssuedDocumentItem(nil), r.db.docs[documentID].Items...), nil
}

func (r *docRepo) List(_ context.Context, f repository.DocumentFilter) ([]*entity.IssuedDocument, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var all []*entity.IssuedDocument
	for _, d := range r.db.docs {
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		d := d
		all = append(all, &d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := min(f.Offset+f.Limit, total)
	return all[f.Offset:end], total, nil
}

func (r *docRepo) UpdateResult(_ context.Context, d *entity.IssuedDocument) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.docs[d.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Status != entity.DocumentStatusProcessing {
		return fmt.Errorf("%w: documento %d em %s", domain.ErrConflict, d.ID, cur.Status)
	}
	r.db.updates++
	cur.Status = d.Status
	cur.StatusCode = d.StatusCode
	cur.StatusMessage = d.StatusMessage
	cur.Protocol = d.Protocol
	cur.AuthorizedAt = d.AuthorizedAt
	cur.XMLResponse = d.XMLResponse
	cur.XMLFull = d.XMLFull
	cur.UpdatedAt = d.UpdatedAt
	r.db.docs[d.ID] = cur
	return nil
}

func (r *docRepo) UpdateArtifacts(_ context.Context, id int64, xmlPath, pdfPath string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if xmlPath != "" {
		cur.XMLPath = xmlPath
	}
	if pdfPath != "" {
		cur.PDFPath = pdfPath
	}
	r.db.docs[id] = cur
	return nil
}

func (r *docRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.docs, id)
	return nil
}

func (r *docRepo) MaxProcessingNumber(_ context.Context, cnpj string, series int) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, d := range r.db.docs {
		if r.db.profiles[d.ProfileID].CNPJ != cnpj || d.Series != series {
			continue
		}
		if d.Status == entity.DocumentStatusProcessing && d.Number > n {
			n = d.Number
		}
	}
	return n, nil
}

func (r *docRepo) ListStaleProcessing(_ context.Context, olderThan time.Time, limit int) ([]*entity.IssuedDocument, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.IssuedDocument
	for _, d := range r.db.docs {
		if d.Status == entity.DocumentStatusProcessing && d.CreatedAt.Before(olderThan) {
			d := d
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type saleRepo struct{ db *memDB }

func (r *saleRepo) GetByID(_ context.Context, id int64) (*entity.Sale, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.sales[id], nil
}

// ── SEFAZ falsa ───────────────────────────────────────────────────────────────

var accessKeyInXML = regexp.MustCompile(`Id="NFe(\d{44})"`)

type fakeSefaz struct {
	mu        sync.Mutex
	authorize func(key string) (*nfce.AuthorizationResult, error)
	consult   func(key string) (*nfce.ConsultResult, error)
	status    *nfce.ServiceStatus
	sent      [][]byte
	consulted []string
}

func (f *fakeSefaz) Authorize(_ context.Context, signedXML []byte, _, _ string, _ *tls.Certificate) (*nfce.AuthorizationResult, error) {
	f.mu.Lock()
	f.sent = append(f.sent, signedXML)
	f.mu.Unlock()
	key := ""
	if m := accessKeyInXML.FindSubmatch(signedXML); m != nil {
		key = string(m[1])
	}
	return f.authorize(key)
}

func (f *fakeSefaz) CheckStatus(context.Context, string, string, *tls.Certificate) (*nfce.ServiceStatus, error) {
	return f.status, nil
}

func (f *fakeSefaz) ConsultByAccessKey(_ context.Context, key, _, _ string, _ *tls.Certificate) (*nfce.ConsultResult, error) {
	f.mu.Lock()
	f.consulted = append(f.consulted, key)
	f.mu.Unlock()
	return f.consult(key)
}

var authorizedAt = time.Date(2024, 1, 15, 14, 30, 5, 0, fiscal.Location())

func protNFe(key, cStat, xMotivo, nProt string) string {
	return `<protNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00"><infProt><tpAmb>2</tpAmb>` +
		`<chNFe>` + key + `</chNFe><dhRecbto>2024-01-15T14:30:05-03:00</dhRecbto>` +
		`<nProt>` + nProt + `</nProt><cStat>` + cStat + `</cStat><xMotivo>` + xMotivo + `</xMotivo></infProt></protNFe>`
}

func authorizedResult(key string) (*nfce.AuthorizationResult, error) {
	at := authorizedAt
	return &nfce.AuthorizationResult{
		Success:      true,
		Status:       "100",
		Message:      "Autorizado o uso da NF-e",
		Protocol:     "135240000012345",
		AuthorizedAt: &at,
		ProtNFe:      protNFe(key, "100", "Autorizado o uso da NF-e", "135240000012345"),
	}, nil
}

func rejectedResult(cStat, msg string) func(string) (*nfce.AuthorizationResult, error) {
	return func(key string) (*nfce.AuthorizationResult, error) {
		return &nfce.AuthorizationResult{Status: cStat, Message: msg, ProtNFe: protNFe(key, cStat, msg, "")}, nil
	}
}

func connectionFailure(string) (*nfce.AuthorizationResult, error) {
	return &nfce.AuthorizationResult{
		Status:  fiscal.StatusConnectionError,
		Message: "Erro de conexão com SEFAZ. Verifique sua conexão com a internet.",
	}, nil
}

// ── Entorno completo ──────────────────────────────────────────────────────────

const masterKey = "chave-mestra-de-teste-com-32-bytes!!"

type env struct {
	db         *memDB
	tx         *txRunner
	sefaz      *fakeSefaz
	vault      *vault.Vault
	certs      *signer.CertificateLoader
	store      *storage.FSStore
	emitter    *appfiscal.Emitter
	reconciler *appfiscal.Reconciler
	config     *appfiscal.ConfigUseCase
	documents  *appfiscal.DocumentUseCase
	status     *appfiscal.StatusUseCase
	now        time.Time
	profileID  int64
}

type envOption func(*appfiscal.EmitterConfig, *appfiscal.ReconcilerConfig)

func advanceOnReject(e *appfiscal.EmitterConfig, r *appfiscal.ReconcilerConfig) {
	e.AdvanceOnReject = true
	r.AdvanceOnReject = true
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	db := newMemDB()
	v, err := vault.New(masterKey)
	require.NoError(t, err)
	canon, err := signer.NewCanonicalizer("simplified")
	require.NoError(t, err)

	e := &env{
		db:    db,
		tx:    &txRunner{db: db},
		sefaz: &fakeSefaz{authorize: authorizedResult},
		vault: v,
		certs: signer.NewCertificateLoader(v, nil, time.Hour),
		store: storage.NewFSStore(t.TempDir()),
		now:   time.Date(2024, 1, 15, 14, 30, 0, 0, fiscal.Location()),
	}
	emitCfg := appfiscal.EmitterConfig{SubmitTimeout: 5 * time.Second}
	recCfg := appfiscal.ReconcilerConfig{ProcessingTimeout: 10 * time.Minute, StatusTimeout: 5 * time.Second}
	for _, o := range opts {
		o(&emitCfg, &recCfg)
	}

	profiles, docs, sales := &profileRepo{db: db}, &docRepo{db: db}, &saleRepo{db: db}
	renderer := pdf.NewMarotoDanfeRenderer()
	builder := nfce.NewXMLBuilderService(nfce.BuilderOptions{SoftwareVersion: "nfce-emissor-test"})

	e.emitter = appfiscal.NewEmitter(e.tx, sales, docs, builder, e.certs, signer.NewService(canon),
		e.sefaz, v, renderer, e.store, emitCfg, nil)
	e.emitter.SetClock(e.clock)
	e.reconciler = appfiscal.NewReconciler(e.tx, profiles, docs, e.certs, e.sefaz, v, renderer, e.store, recCfg, nil)
	e.reconciler.SetClock(e.clock)
	e.config = appfiscal.NewConfigUseCase(e.tx, profiles, e.certs, v)
	e.documents = appfiscal.NewDocumentUseCase(docs, profiles, renderer, pdf.NewTextDanfeRenderer(pdf.DefaultColumns),
		e.store, e.reconciler, nil)
	e.status = appfiscal.NewStatusUseCase(profiles, e.certs, v, e.sefaz, time.Second)
	return e
}

func (e *env) clock() time.Time { return e.now }

func (e *env) seal(t *testing.T, s string) string {
	t.Helper()
	out, err := e.vault.Seal(s)
	require.NoError(t, err)
	return out
}

// seedProfile registra el perfil activo de SP en homologación con certificado A1 válido.
func (e *env) seedProfile(t *testing.T, mutate ...func(*entity.FiscalProfile)) *entity.FiscalProfile {
	t.Helper()
	p := &entity.FiscalProfile{
		CNPJ:                signertest.CNPJ,
		IE:                  "123456789012",
		LegalName:           "EMPRESA TESTE LTDA",
		TradeName:           "LOJA TESTE",
		Street:              "Rua das Flores",
		Number:              "100",
		District:            "Centro",
		CityCode:            "3550308",
		CityName:            "São Paulo",
		UF:                  "SP",
		CEP:                 "01001000",
		CRT:                 entity.CRTSimplesNacional,
		Series:              1,
		LastNumber:          122,
		Environment:         fiscal.EnvironmentHomologation,
		CertificateType:     entity.CertificateTypeA1,
		CertificateA1:       signertest.KeystoreBase64(t, signertest.ValidCertificate(t), signertest.Password),
		CertificatePassword: e.seal(t, signertest.Password),
		CSCID:               "000001",
		CSCToken:            e.seal(t, "CSCTOKEN123"),
		Active:              true,
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, (&profileRepo{db: e.db}).Create(context.Background(), p))
	e.profileID = p.ID
	return p
}

// seedSale registra una venta en efectivo de un ítem por el valor indicado.
func (e *env) seedSale(t *testing.T, id int64, value string) *entity.Sale {
	t.Helper()
	v := decimal.RequireFromString(value)
	s := &entity.Sale{
		ID:            id,
		Subtotal:      v,
		Total:         v,
		PaymentMethod: fiscal.PaymentCash,
		Status:        "COMPLETED",
		CreatedAt:     e.now,
		Items: []entity.SaleItem{{
			ID:          id*10 + 1,
			ProductID:   7,
			ProductCode: "P007",
			Description: "CAFE TORRADO 500G",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   v,
			Subtotal:    v,
		}},
	}
	e.db.mu.Lock()
	e.db.sales[id] = s
	e.db.mu.Unlock()
	return s
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func filesUnder(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return out
}
