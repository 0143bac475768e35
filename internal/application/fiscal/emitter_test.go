package fiscal_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfiscal "github.com/jhoicas/nfce-emissor/internal/application/fiscal"
	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce/signer"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/pdf"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/storage"
	"github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

func TestEmit_AutorizadaAvanzaNumeracionYGeneraDanfe(t *testing.T) {
	e := newEnv(t)
	p := e.seedProfile(t)
	e.seedSale(t, 1, "10.00")

	res := e.emitter.Emit(context.Background(), 1)

	require.True(t, res.Success, res.Message)
	assert.Equal(t, entity.DocumentStatusAuthorized, res.Status)
	assert.Equal(t, "100", res.Code)
	assert.Equal(t, "135240000012345", res.Protocol)
	assert.Len(t, res.AccessKey, fiscal.AccessKeyLength)
	assert.True(t, fiscal.ValidateAccessKey(res.AccessKey))
	assert.NotEmpty(t, res.TraceID)

	assert.Equal(t, int64(123), e.db.profile(p.ID).LastNumber, "last_number avanza exactamente 1")

	doc := e.db.doc(res.DocumentID)
	assert.Equal(t, entity.DocumentStatusAuthorized, doc.Status)
	assert.Equal(t, int64(123), doc.Number)
	assert.Equal(t, "135240000012345", doc.Protocol)
	require.NotNil(t, doc.AuthorizedAt)
	assert.True(t, strings.HasPrefix(doc.XMLFull, `<?xml version="1.0" encoding="UTF-8"?><nfeProc`))
	assert.Contains(t, doc.XMLFull, "<protNFe")
	assert.Contains(t, doc.XMLFull, "<infNFeSupl>")
	assert.Equal(t, "10.00", doc.TotalValue.StringFixed(2))
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "P007", doc.Items[0].ProductCode)
	assert.Equal(t, nfce.CFOPSale, doc.Items[0].CFOP)

	wantPDF := e.store.PathFor(res.AccessKey, *doc.AuthorizedAt, storage.ExtPDF)
	assert.Equal(t, wantPDF, res.PDFPath)
	assert.Equal(t, wantPDF, doc.PDFPath)
	assert.Contains(t, filepathSlash(wantPDF), "/2024/01/"+res.AccessKey+".pdf")
	data, err := os.ReadFile(wantPDF)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))

	xmlData, err := os.ReadFile(doc.XMLPath)
	require.NoError(t, err)
	assert.Equal(t, doc.XMLFull, string(xmlData))
}

func TestEmit_RechazadaNoAvanzaNiGeneraDanfe(t *testing.T) {
	e := newEnv(t)
	p := e.seedProfile(t)
	e.seedSale(t, 1, "10.00")
	e.sefaz.authorize = rejectedResult("110", "Uso Denegado")

	res := e.emitter.Emit(context.Background(), 1)

	assert.False(t, res.Success)
	assert.Equal(t, entity.DocumentStatusRejected, res.Status)
	assert.Equal(t, "110", res.Code)
	assert.Equal(t, "Uso Denegado", res.Message)

	assert.Equal(t, int64(122), e.db.profile(p.ID).LastNumber)
	doc := e.db.doc(res.DocumentID)
	assert.Equal(t, entity.DocumentStatusRejected, doc.Status)
	assert.Empty(t, doc.PDFPath)
	assert.Empty(t, filesUnder(t, e.store.Root()))
}

func TestEmit_RechazoConAvanceConfigurado(t *testing.T) {
	e := newEnv(t, advanceOnReject)
	p := e.seedProfile(t)
	e.seedSale(t, 1, "10.00")
	e.sefaz.authorize = rejectedResult("539", "Rejeição: Duplicidade de NF-e com diferença na Chave de Acesso")

	res := e.emitter.Emit(context.Background(), 1)

	assert.Equal(t, entity.DocumentStatusRejected, res.Status)
	assert.Equal(t, int64(123), e.db.profile(p.ID).LastNumber)
}

func TestEmit_TimeoutDevuelveCodigoDeConexion(t *testing.T) {
	e := newEnv(t)
	p := e.seedProfile(t)
	e.seedSale(t, 1, "10.00")

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client := nfce.NewSefazClient(
		nfce.WithHTTPClient(srv.Client()),
		nfce.WithEndpointResolver(func(string, string, nfce.Service) (string, error) { return srv.URL, nil }),
	)
	canon, err := signer.NewCanonicalizer("simplified")
	require.NoError(t, err)
	emitter := appfiscal.NewEmitter(e.tx, &saleRepo{db: e.db}, &docRepo{db: e.db},
		nfce.NewXMLBuilderService(nfce.BuilderOptions{}), e.certs, signer.NewService(canon), client, e.vault,
		pdf.NewMarotoDanfeRenderer(), e.store, appfiscal.EmitterConfig{SubmitTimeout: 50 * time.Millisecond}, nil)

	res := emitter.Emit(context.Background(), 1)

	assert.False(t, res.Success)
	assert.Equal(t, entity.DocumentStatusError, res.Status)
	assert.Equal(t, fiscal.StatusConnectionError, res.Code)
	assert.NotEqual(t, "110", res.Code)
	assert.Contains(t, res.Message, "Erro de conexão com SEFAZ")

	doc, ok := e.db.docForSale(1)
	require.True(t, ok)
	assert.Equal(t, entity.DocumentStatusProcessing, doc.Status, "sin determinación de la SEFAZ")
	assert.Equal(t, fiscal.StatusConnectionError, doc.StatusCode)
	assert.Equal(t, int64(122), e.db.profile(p.ID).LastNumber)
}

func TestEmit_IdempotenciaRechazaSegundaEmision(t *testing.T) {
	e := newEnv(t)
	e.seedProfile(t)
	e.seedSale(t, 1, "10.00")

	first := e.emitter.Emit(context.Background(), 1)
	require.True(t, first.Success)

	second := e.emitter.Emit(context.Background(), 1)
	assert.False(t, second.Success)
	assert.Equal(t, appfiscal.CodeAlreadyEmitted, second.Code)
	assert.Equal(t, "Já existe NFC-e emitida para esta venda", second.Message)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, first.AccessKey, second.AccessKey)

	assert.Equal(t, 1, e.db.docCount())
	assert.Len(t, e.sefaz.sent, 1)
}

func TestEmit_DocumentoEnProcessingTambienBloquea(t *testing.T) {
	e := newEnv(t)
	e.seedProfile(t)
	e.seedSale(t, 1, "10.00")
	e.sefaz.authorize = connectionFailure

	first := e.emitter.Emit(context.Background(), 1)
	require.Equal(t, fiscal.StatusConnectionError, first.Code)

	e.sefaz.authorize = authorizedResult
	second := e.emitter.Emit(context.Background(), 1)
	assert.Equal(t, appfiscal.CodeAlreadyEmitted, second.Code)
	assert.Equal(t, 1, e.db.docCount())
}

func TestEmit_ReemiteDespuesDeError(t *testing.T) {
	e := newEnv(t)
	p := e.seedProfile(t)
	e.seedSale(t, 1, "10.00")
	stale := &entity.IssuedDocument{
		SaleID: 1, ProfileID: p.ID, Number: 50, Series: 1, Model: entity.ModelNFCe,
		AccessKey: strings.Repeat("9", 44), Status: entity.DocumentStatusError, StatusCode: "217",
	}
	require.NoError(t, (&docRepo{db: e.db}).Create(context.Background(), stale))

	res := e.emitter.Emit(context.Background(), 1)

	require.True(t, res.Success, res.Message)
	assert.NotEqual(t, stale.ID, res.DocumentID)
	assert.Equal(t, 1, e.db.docCount())
	assert.Equal(t, int64(123), e.db.profile(p.ID).LastNumber)
}

func TestEmit_NoReutilizaNumeroEnProcessing(t *testing.T) {
	e := newEnv(t)
	p := e.seedProfile(t)
	e.seedSale(t, 2, "10.00")
	pending := &entity.IssuedDocument{
		SaleID: 1, ProfileID: p.ID, Number: 130, Series: 1, Model: entity.ModelNFCe,
		AccessKey: strings.Repeat("1", 44), Status: entity.DocumentStatusProcessing,
	}
	require.NoError(t, (&docRepo{db: e.db}).Create(context.Background(), pending))

	res := e.emitter.Emit(context.Background(), 2)

	require.True(t, res.Success, res.Message)
	assert.Equal(t, int64(131), e.db.doc(res.DocumentID).Number)
	assert.Equal(t, "131", res.AccessKey[25:34][6:])
	assert.Equal(t, int64(131), e.db.profile(p.ID).LastNumber)
}

func TestEmit_XMLEnviadoFirmadoConQRCode(t *testing.T) {
	e := newEnv(t)
	e.seedProfile(t)
	e.seedSale(t, 1, "10.00")

	res := e.emitter.Emit(context.Background(), 1)
	require.True(t, res.Success, res.Message)

	require.Len(t, e.sefaz.sent, 1)
	sent := e.sefaz.sent[0]
	assert.True(t, signer.IsSigned(sent))
	assert.Equal(t, 1, strings.Count(string(sent), "<Signature "))
	assert.Contains(t, string(sent), "<infNFeSupl><qrCode><![CDATA[")
	assert.Less(t, strings.Index(string(sent), "</Signature>"), strings.Index(string(sent), "<infNFeSupl>"))
	assert.Contains(t, string(sent), "<vNF>10.00</vNF>")
	assert.Contains(t, string(sent), "<tPag>01</tPag>")

	canon, err := signer.NewCanonicalizer("simplified")
	require.NoError(t, err)
	assert.NoError(t, signer.NewService(canon).Verify(sent))
}

func TestEmit_SinPerfilActivo(t *testing.T) {
	e := newEnv(t)
	e.seedSale(t, 1, "10.00")

	res := e.emitter.Emit(context.Background(), 1)

	assert.False(t, res.Success)
	assert.Equal(t, entity.DocumentStatusError, res.Status)
	assert.Equal(t, appfiscal.CodeNoProfile, res.Code)
	assert.Equal(t, "Configuração fiscal não encontrada. Configure primeiro.", res.Message)
	assert.Zero(t, e.db.docCount())
	assert.Empty(t, e.sefaz.sent)
}

func TestEmit_VentaInexistente(t *testing.T) {
	e := newEnv(t)
	e.seedProfile(t)

	res := e.emitter.Emit(context.Background(), 404)

	assert.Equal(t, appfiscal.CodeSaleNotFound, res.Code)
	assert.Zero(t, e.db.docCount())
}

func TestEmit_CertificadoA3SinDriverNoDejaDocumento(t *testing.T) {
	e := newEnv(t)
	p := e.seedProfile(t, func(p *entity.FiscalProfile) {
		p.CertificateType = entity.CertificateTypeA3
		p.CertificateA1 = ""
		p.CertificatePin = e.seal(t, "1234")
		p.PKCS11Library = "/usr/lib/libeToken.so"
	})
	e.seedSale(t, 1, "10.00")

	res := e.emitter.Emit(context.Background(), 1)

	assert.Equal(t, appfiscal.CodeInternal, res.Code)
	assert.Contains(t, res.Message, "PKCS#11")
	assert.Zero(t, e.db.docCount(), "la transacción de emisión hace rollback")
	assert.Equal(t, int64(122), e.db.profile(p.ID).LastNumber)
}

func TestEmit_TipoDeCertificadoInvalido(t *testing.T) {
	e := newEnv(t)
	e.seedProfile(t, func(p *entity.FiscalProfile) { p.CertificateType = "A2" })
	e.seedSale(t, 1, "10.00")

	res := e.emitter.Emit(context.Background(), 1)

	assert.Contains(t, res.Message, "Tipo de certificado inválido")
	assert.Zero(t, e.db.docCount())
}

func TestEmit_VentaInconsistenteFallaAntesDeEnviar(t *testing.T) {
	e := newEnv(t)
	e.seedProfile(t)
	s := e.seedSale(t, 1, "10.00")
	s.Total = s.Total.Add(s.Total)

	res := e.emitter.Emit(context.Background(), 1)

	assert.Equal(t, entity.DocumentStatusError, res.Status)
	assert.Contains(t, res.Message, "não confere")
	assert.Zero(t, e.db.docCount())
	assert.Empty(t, e.sefaz.sent)
}

func TestEmit_ErrorDeTransporteMarcaError(t *testing.T) {
	e := newEnv(t)
	e.seedProfile(t)
	e.seedSale(t, 1, "10.00")
	e.sefaz.authorize = func(string) (*nfce.AuthorizationResult, error) {
		return nil, errors.New("sefaz: UF sem web service configurado")
	}

	res := e.emitter.Emit(context.Background(), 1)

	assert.Equal(t, appfiscal.CodeInternal, res.Code)
	doc, ok := e.db.docForSale(1)
	require.True(t, ok)
	assert.Equal(t, entity.DocumentStatusError, doc.Status)

	e.sefaz.authorize = authorizedResult
	again := e.emitter.Emit(context.Background(), 1)
	assert.True(t, again.Success, again.Message)
}

func TestEmit_EmisionesConcurrentesNoRepitenNumero(t *testing.T) {
	e := newEnv(t)
	p := e.seedProfile(t)
	const n = 8
	for i := int64(1); i <= n; i++ {
		e.seedSale(t, i, "5.00")
	}

	results := make(chan appfiscal.EmissionResult, n)
	for i := int64(1); i <= n; i++ {
		go func(id int64) { results <- e.emitter.Emit(context.Background(), id) }(i)
	}
	numbers := map[int64]bool{}
	for i := 0; i < n; i++ {
		r := <-results
		require.True(t, r.Success, r.Message)
		num := e.db.doc(r.DocumentID).Number
		assert.False(t, numbers[num], "número %d repetido", num)
		numbers[num] = true
	}
	assert.Equal(t, int64(122+n), e.db.profile(p.ID).LastNumber)
}

func filepathSlash(p string) string { return strings.ReplaceAll(p, `\`, "/") }

func TestEmit_NoReutilizaNumeroPendienteTrasReemplazarPerfil(t *testing.T) {
	e := newEnv(t)
	e.seedProfile(t)
	e.seedSale(t, 1, "10.00")
	e.seedSale(t, 2, "20.00")
	e.sefaz.authorize = connectionFailure
	first := e.emitter.Emit(context.Background(), 1)
	require.Equal(t, fiscal.StatusConnectionError, first.Code)

	cfg, err := e.config.Save(context.Background(), validConfig(t))
	require.NoError(t, err)

	e.sefaz.authorize = authorizedResult
	second := e.emitter.Emit(context.Background(), 2)
	require.True(t, second.Success, second.Message)

	pending := e.db.doc(first.DocumentID)
	assert.Equal(t, entity.DocumentStatusProcessing, pending.Status)
	assert.Equal(t, int64(123), pending.Number)
	assert.Equal(t, int64(124), e.db.doc(second.DocumentID).Number)
	assert.Equal(t, int64(124), e.db.profile(cfg.ID).LastNumber)
}
