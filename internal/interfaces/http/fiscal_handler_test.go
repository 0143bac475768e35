package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfce-emissor/internal/application/dto"
	appfiscal "github.com/jhoicas/nfce-emissor/internal/application/fiscal"
	"github.com/jhoicas/nfce-emissor/internal/domain"
	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	apphttp "github.com/jhoicas/nfce-emissor/internal/interfaces/http"
	"github.com/jhoicas/nfce-emissor/pkg/fiscal"
	pkgjwt "github.com/jhoicas/nfce-emissor/pkg/jwt"
)

// ── Fakes de los casos de uso ─────────────────────────────────────────────────

type stubEmitter struct {
	result appfiscal.EmissionResult
	saleID int64
}

func (s *stubEmitter) Emit(_ context.Context, saleID int64) appfiscal.EmissionResult {
	s.saleID = saleID
	return s.result
}

type stubConfig struct {
	saved dto.FiscalConfigRequest
	err   error
}

func (s *stubConfig) Get(context.Context) (*dto.FiscalConfigResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.FiscalConfigResponse{ID: 1, UF: "SP", HasCSCToken: true}, nil
}

func (s *stubConfig) Save(_ context.Context, in dto.FiscalConfigRequest) (*dto.FiscalConfigResponse, error) {
	s.saved = in
	if s.err != nil {
		return nil, s.err
	}
	return &dto.FiscalConfigResponse{ID: 2, UF: in.UF}, nil
}

func (s *stubConfig) TestCertificate(context.Context, dto.CertificateTestRequest) (*dto.CertificateTestResponse, error) {
	return &dto.CertificateTestResponse{IsValid: true, MatchesCNPJ: true}, nil
}

type stubDocuments struct {
	filter dto.DocumentFilterRequest
}

func (s *stubDocuments) GetByID(_ context.Context, id int64) (*dto.DocumentResponse, error) {
	if id != 7 {
		return nil, domain.ErrNotFound
	}
	return &dto.DocumentResponse{ID: 7, Status: entity.DocumentStatusAuthorized}, nil
}

func (s *stubDocuments) GetBySaleID(_ context.Context, saleID int64) (*dto.DocumentResponse, error) {
	return &dto.DocumentResponse{ID: 7, SaleID: saleID}, nil
}

func (s *stubDocuments) List(_ context.Context, in dto.DocumentFilterRequest) (*dto.DocumentListResponse, error) {
	s.filter = in
	if in.Status == "CANCELLED" {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidInput, in.Status)
	}
	return &dto.DocumentListResponse{Items: []dto.DocumentResponse{}, Page: dto.PageResponse{Limit: in.Limit}}, nil
}

func (s *stubDocuments) XML(context.Context, int64) ([]byte, string, error) {
	return []byte("<nfeProc/>"), "chave.xml", nil
}

func (s *stubDocuments) PDF(_ context.Context, id int64) ([]byte, string, error) {
	if id == 8 {
		return nil, "", fmt.Errorf("%w: DANFE disponível apenas para NFC-e autorizada", domain.ErrConflict)
	}
	return []byte("%PDF-1.3"), "chave.pdf", nil
}

func (s *stubDocuments) Text(context.Context, int64) (string, error) {
	return "DANFE NFC-e", nil
}

func (s *stubDocuments) Consult(_ context.Context, id int64) (*dto.ConsultResponse, error) {
	return &dto.ConsultResponse{DocumentID: id, Status: "100", DocumentStatus: entity.DocumentStatusAuthorized}, nil
}

type stubStatus struct{}

func (stubStatus) Check(context.Context) (*dto.SefazStatusResponse, error) {
	return nil, domain.ErrNoActiveProfile
}

type stubSweeper struct{}

func (stubSweeper) Sweep(context.Context) (*dto.ReconcileResponse, error) {
	return &dto.ReconcileResponse{Checked: 2, Authorized: 1, Pending: 1}, nil
}

type fiscalApp struct {
	app     *fiber.App
	emitter *stubEmitter
	config  *stubConfig
	docs    *stubDocuments
}

func newFiscalApp() *fiscalApp {
	f := &fiscalApp{
		app:     fiber.New(),
		emitter: &stubEmitter{},
		config:  &stubConfig{},
		docs:    &stubDocuments{},
	}
	apphttp.Router(f.app, apphttp.RouterDeps{
		Emitter:   f.emitter,
		Config:    f.config,
		Documents: f.docs,
		Status:    stubStatus{},
		Sweeper:   stubSweeper{},
		JWTSecret: testJWTSecret,
	})
	return f
}

func (f *fiscalApp) do(t *testing.T, method, path, role, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestEmit_CodigosHTTPSegunResultado(t *testing.T) {
	cases := []struct {
		name   string
		result appfiscal.EmissionResult
		want   int
	}{
		{"autorizada", appfiscal.EmissionResult{Success: true, Status: entity.DocumentStatusAuthorized, Code: "100"}, http.StatusCreated},
		{"rechazada", appfiscal.EmissionResult{Status: entity.DocumentStatusRejected, Code: "539"}, http.StatusUnprocessableEntity},
		{"sin_conexion", appfiscal.EmissionResult{Status: entity.DocumentStatusError, Code: fiscal.StatusConnectionError}, http.StatusAccepted},
		{"ya_emitida", appfiscal.EmissionResult{Status: entity.DocumentStatusError, Code: appfiscal.CodeAlreadyEmitted}, http.StatusConflict},
		{"sin_perfil", appfiscal.EmissionResult{Status: entity.DocumentStatusError, Code: appfiscal.CodeNoProfile}, http.StatusPreconditionFailed},
		{"venta_inexistente", appfiscal.EmissionResult{Status: entity.DocumentStatusError, Code: appfiscal.CodeSaleNotFound}, http.StatusNotFound},
		{"interno", appfiscal.EmissionResult{Status: entity.DocumentStatusError, Code: appfiscal.CodeInternal}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFiscalApp()
			f.emitter.result = tc.result

			resp := f.do(t, http.MethodPost, "/api/fiscal/emit", pkgjwt.RoleOperator, `{"sale_id": 42}`)
			assert.Equal(t, tc.want, resp.StatusCode)
			out := decode[appfiscal.EmissionResult](t, resp)
			assert.Equal(t, tc.result.Code, out.Code)
			assert.Equal(t, int64(42), f.emitter.saleID)
		})
	}
}

func TestEmit_SinSaleID(t *testing.T) {
	f := newFiscalApp()

	resp := f.do(t, http.MethodPost, "/api/fiscal/emit", pkgjwt.RoleOperator, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, f.emitter.saleID)
}

func TestEmit_SinToken(t *testing.T) {
	f := newFiscalApp()

	resp := f.do(t, http.MethodPost, "/api/fiscal/emit", "", `{"sale_id": 1}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConfig_SoloAdminGuarda(t *testing.T) {
	f := newFiscalApp()

	resp := f.do(t, http.MethodPost, "/api/fiscal/config", pkgjwt.RoleManager, `{"uf":"SP"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/fiscal/config", pkgjwt.RoleAdmin, `{"uf":"SP","csc_token":"X"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "X", f.config.saved.CSCToken)
}

func TestConfig_ErroresDeDominio(t *testing.T) {
	f := newFiscalApp()
	f.config.err = domain.ErrNoActiveProfile

	resp := f.do(t, http.MethodGet, "/api/fiscal/config", pkgjwt.RoleAdmin, "")
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	assert.Equal(t, "NO_PROFILE", decode[dto.ErrorResponse](t, resp).Code)

	f.config.err = fmt.Errorf("%w: CNPJ inválido", domain.ErrInvalidInput)
	resp = f.do(t, http.MethodPost, "/api/fiscal/config", pkgjwt.RoleAdmin, `{"cnpj":"1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "VALIDATION", body.Code)
	assert.Contains(t, body.Message, "CNPJ inválido")
}

func TestTestCertificate_CuerpoVacio(t *testing.T) {
	f := newFiscalApp()

	resp := f.do(t, http.MethodPost, "/api/fiscal/config/test-certificate", pkgjwt.RoleAdmin, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[dto.CertificateTestResponse](t, resp).MatchesCNPJ)
}

func TestDocuments_ListPasaFiltros(t *testing.T) {
	f := newFiscalApp()

	resp := f.do(t, http.MethodGet, "/api/fiscal/documents?status=AUTHORIZED&limit=5&offset=10", pkgjwt.RoleOperator, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, entity.DocumentStatusAuthorized, f.docs.filter.Status)
	assert.Equal(t, 5, f.docs.filter.Limit)
	assert.Equal(t, 10, f.docs.filter.Offset)

	resp = f.do(t, http.MethodGet, "/api/fiscal/documents?status=CANCELLED", pkgjwt.RoleOperator, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDocuments_GetPorIDYVenta(t *testing.T) {
	f := newFiscalApp()

	resp := f.do(t, http.MethodGet, "/api/fiscal/documents/7", pkgjwt.RoleOperator, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(7), decode[dto.DocumentResponse](t, resp).ID)

	resp = f.do(t, http.MethodGet, "/api/fiscal/documents/99", pkgjwt.RoleOperator, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/fiscal/documents/abc", pkgjwt.RoleOperator, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/fiscal/documents/sale/42", pkgjwt.RoleOperator, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(42), decode[dto.DocumentResponse](t, resp).SaleID)
}

func TestDocuments_Descargas(t *testing.T) {
	f := newFiscalApp()

	resp := f.do(t, http.MethodGet, "/api/fiscal/documents/7/pdf", pkgjwt.RoleOperator, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "chave.pdf")

	resp = f.do(t, http.MethodGet, "/api/fiscal/documents/8/pdf", pkgjwt.RoleOperator, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/fiscal/documents/7/xml", pkgjwt.RoleOperator, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/xml")
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "<nfeProc/>", string(body))

	resp = f.do(t, http.MethodGet, "/api/fiscal/documents/7/text", pkgjwt.RoleOperator, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}

func TestDocuments_Consult(t *testing.T) {
	f := newFiscalApp()

	resp := f.do(t, http.MethodPost, "/api/fiscal/documents/7/consult", pkgjwt.RoleOperator, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, entity.DocumentStatusAuthorized, decode[dto.ConsultResponse](t, resp).DocumentStatus)
}

func TestOperacion_StatusYReconcile(t *testing.T) {
	f := newFiscalApp()

	resp := f.do(t, http.MethodGet, "/api/fiscal/sefaz/status", pkgjwt.RoleOperator, "")
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/fiscal/reconcile", pkgjwt.RoleOperator, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/fiscal/reconcile", pkgjwt.RoleManager, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decode[dto.ReconcileResponse](t, resp).Checked)
}
