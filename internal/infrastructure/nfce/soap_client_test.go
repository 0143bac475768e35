package nfce_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce/signer/signertest"
	"github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

const signedStub = `<?xml version="1.0" encoding="UTF-8"?><NFe xmlns="http://www.portalfiscal.inf.br/nfe"><infNFe Id="NFe` + qrKey + `"/></NFe>`

func soapResponse(body string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>` +
		`<nfeResultMsg xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeAutorizacao4">` + body + `</nfeResultMsg>` +
		`</soap:Body></soap:Envelope>`
}

const protAuthorized = `<protNFe versao="4.00"><infProt><tpAmb>2</tpAmb><chNFe>` + qrKey + `</chNFe>` +
	`<dhRecbto>2024-01-15T14:30:05-03:00</dhRecbto><nProt>135240000012345</nProt>` +
	`<cStat>100</cStat><xMotivo>Autorizado o uso da NF-e</xMotivo></infProt></protNFe>`

type captured struct {
	contentType string
	body        string
}

func stubSefaz(t *testing.T, response string, status int) (*nfce.SefazClient, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.contentType = r.Header.Get("Content-Type")
		c.body = string(b)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	client := nfce.NewSefazClient(
		nfce.WithHTTPClient(srv.Client()),
		nfce.WithEndpointResolver(func(string, string, nfce.Service) (string, error) { return srv.URL, nil }),
		nfce.WithClock(func() time.Time { return time.UnixMilli(1700000000123) }),
	)
	return client, c
}

func TestAuthorize_Autorizada(t *testing.T) {
	resp := soapResponse(`<retEnviNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00"><cStat>100</cStat>` +
		`<xMotivo>Autorizado o uso da NF-e</xMotivo>` + protAuthorized + `</retEnviNFe>`)
	client, req := stubSefaz(t, resp, http.StatusOK)

	res, err := client.Authorize(context.Background(), []byte(signedStub), "SP", fiscal.EnvironmentHomologation, nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "100", res.Status)
	assert.Equal(t, "135240000012345", res.Protocol)
	require.NotNil(t, res.AuthorizedAt)
	assert.Equal(t, int64(1705339805), res.AuthorizedAt.Unix())
	assert.Contains(t, res.ProtNFe, "<nProt>135240000012345</nProt>")

	assert.Contains(t, req.contentType, "application/soap+xml")
	assert.Contains(t, req.contentType, `action="http://www.portalfiscal.inf.br/nfe/wsdl/NFeAutorizacao4/nfeAutorizacaoLote"`)
	assert.Contains(t, req.body, `<nfeDadosMsg xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeAutorizacao4">`)
	assert.Contains(t, req.body, "<idLote>0000000123</idLote><indSinc>1</indSinc><NFe ")
	assert.Equal(t, 1, strings.Count(req.body, "<?xml"))
}

func TestAuthorize_LoteProcesadoConProtocoloAutorizado(t *testing.T) {
	resp := soapResponse(`<retEnviNFe><cStat>104</cStat><xMotivo>Lote processado</xMotivo>` + protAuthorized + `</retEnviNFe>`)
	client, _ := stubSefaz(t, resp, http.StatusOK)

	res, err := client.Authorize(context.Background(), []byte(signedStub), "SP", fiscal.EnvironmentHomologation, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "100", res.Status)
	assert.Equal(t, "Autorizado o uso da NF-e", res.Message)
	assert.Equal(t, "135240000012345", res.Protocol)
}

func TestAuthorize_LoteProcesadoConRechazo(t *testing.T) {
	resp := soapResponse(`<retEnviNFe><cStat>104</cStat><xMotivo>Lote processado</xMotivo>` +
		`<protNFe versao="4.00"><infProt><cStat>539</cStat><xMotivo>Duplicidade de NF-e</xMotivo></infProt></protNFe></retEnviNFe>`)
	client, _ := stubSefaz(t, resp, http.StatusOK)

	res, err := client.Authorize(context.Background(), []byte(signedStub), "SP", fiscal.EnvironmentHomologation, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "539", res.Status)
	assert.Equal(t, "Nota rejeitada: Duplicidade de NF-e", res.Message)
	assert.Empty(t, res.Protocol)
}

func TestAuthorize_Rechazada(t *testing.T) {
	resp := soapResponse(`<retEnviNFe><cStat>110</cStat><xMotivo>Uso Denegado</xMotivo></retEnviNFe>`)
	client, _ := stubSefaz(t, resp, http.StatusOK)

	res, err := client.Authorize(context.Background(), []byte(signedStub), "SP", fiscal.EnvironmentHomologation, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.IsConnectionError())
	assert.Equal(t, "110", res.Status)
	assert.Equal(t, "Uso Denegado", res.Message)
}

func TestAuthorize_TimeoutDevuelve999(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	client := nfce.NewSefazClient(
		nfce.WithHTTPClient(srv.Client()),
		nfce.WithEndpointResolver(func(string, string, nfce.Service) (string, error) { return srv.URL, nil }),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res, err := client.Authorize(ctx, []byte(signedStub), "SP", fiscal.EnvironmentHomologation, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.IsConnectionError())
	assert.Equal(t, fiscal.StatusConnectionError, res.Status)
	assert.Equal(t, "Erro de conexão com SEFAZ. Verifique sua conexão com a internet.", res.Message)
}

func TestAuthorize_RespuestaIlegibleDevuelve999(t *testing.T) {
	client, _ := stubSefaz(t, "<html>gateway</html>", http.StatusOK)
	res, err := client.Authorize(context.Background(), []byte(signedStub), "SP", fiscal.EnvironmentHomologation, nil)
	require.NoError(t, err)
	assert.Equal(t, fiscal.StatusConnectionError, res.Status)
}

func TestAuthorize_UFSinWebServiceEsError(t *testing.T) {
	client := nfce.NewSefazClient()
	_, err := client.Authorize(context.Background(), []byte(signedStub), "AM", fiscal.EnvironmentHomologation, nil)
	assert.Error(t, err)
}

func TestCheckStatus(t *testing.T) {
	resp := soapResponse(`<retConsStatServ versao="4.00"><tpAmb>2</tpAmb><cStat>107</cStat><xMotivo>Servico em Operacao</xMotivo></retConsStatServ>`)
	client, req := stubSefaz(t, resp, http.StatusOK)

	st, err := client.CheckStatus(context.Background(), "SP", fiscal.EnvironmentHomologation, nil)
	require.NoError(t, err)
	assert.True(t, st.Online)
	assert.Equal(t, "107 - Servico em Operacao", st.Message)
	assert.Contains(t, req.body, "<cUF>35</cUF><xServ>STATUS</xServ>")
	assert.Contains(t, req.contentType, "nfeStatusServicoNF")
}

func TestCheckStatus_Paralisado(t *testing.T) {
	resp := soapResponse(`<retConsStatServ><cStat>108</cStat><xMotivo>Servico Paralisado Momentaneamente</xMotivo></retConsStatServ>`)
	client, _ := stubSefaz(t, resp, http.StatusOK)

	st, err := client.CheckStatus(context.Background(), "SP", fiscal.EnvironmentHomologation, nil)
	require.NoError(t, err)
	assert.False(t, st.Online)
	assert.Equal(t, "108", st.Status)
}

func TestConsultByAccessKey(t *testing.T) {
	resp := soapResponse(`<retConsSitNFe versao="4.00"><cStat>100</cStat><xMotivo>Autorizado o uso da NF-e</xMotivo>` +
		`<chNFe>` + qrKey + `</chNFe>` + protAuthorized + `</retConsSitNFe>`)
	client, req := stubSefaz(t, resp, http.StatusOK)

	res, err := client.ConsultByAccessKey(context.Background(), qrKey, "SP", fiscal.EnvironmentHomologation, nil)
	require.NoError(t, err)
	assert.True(t, res.IsAuthorized())
	assert.Equal(t, "135240000012345", res.Protocol)
	assert.NotEmpty(t, res.ProtNFe)
	assert.Contains(t, req.body, "<xServ>CONSULTAR</xServ><chNFe>"+qrKey+"</chNFe>")
}

func TestConsultByAccessKey_NoConsta(t *testing.T) {
	resp := soapResponse(`<retConsSitNFe><cStat>217</cStat><xMotivo>Rejeicao: NF-e nao consta na base de dados da SEFAZ</xMotivo></retConsSitNFe>`)
	client, _ := stubSefaz(t, resp, http.StatusOK)

	res, err := client.ConsultByAccessKey(context.Background(), qrKey, "SP", fiscal.EnvironmentHomologation, nil)
	require.NoError(t, err)
	assert.False(t, res.IsAuthorized())
	assert.Equal(t, fiscal.StatusNotFound, res.Status)

	_, err = client.ConsultByAccessKey(context.Background(), "123", "SP", fiscal.EnvironmentHomologation, nil)
	assert.Error(t, err)
}

func TestSefazClient_ReutilizaConexionMTLSDelMismoCertificado(t *testing.T) {
	resp := soapResponse(`<retConsStatServ versao="4.00"><cStat>107</cStat><xMotivo>Servico em Operacao</xMotivo></retConsStatServ>`)

	var (
		conns atomic.Int32
		mu    sync.Mutex
		peers []string
	)
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
			peers = append(peers, r.TLS.PeerCertificates[0].Subject.CommonName)
		}
		mu.Unlock()
		_, _ = io.WriteString(w, resp)
	}))
	srv.TLS = &tls.Config{ClientAuth: tls.RequireAnyClientCert}
	srv.Config.ConnState = func(_ net.Conn, st http.ConnState) {
		if st == http.StateNew {
			conns.Add(1)
		}
	}
	srv.StartTLS()
	t.Cleanup(srv.Close)

	roots := x509.NewCertPool()
	roots.AddCert(srv.Certificate())
	client := nfce.NewSefazClient(
		nfce.WithRootCAs(roots),
		nfce.WithEndpointResolver(func(string, string, nfce.Service) (string, error) { return srv.URL, nil }),
	)
	t.Cleanup(client.CloseIdleConnections)

	x := signertest.ValidCertificate(t)
	cert := &tls.Certificate{Certificate: [][]byte{x.Raw}, PrivateKey: signertest.Key(t), Leaf: x}

	for i := 0; i < 3; i++ {
		st, err := client.CheckStatus(context.Background(), "SP", fiscal.EnvironmentHomologation, cert)
		require.NoError(t, err)
		assert.True(t, st.Online)
	}

	assert.Equal(t, int32(1), conns.Load(), "las tres llamadas deben compartir una conexión TLS")
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, peers, 3)
	for _, cn := range peers {
		assert.Contains(t, cn, signertest.CNPJ)
	}
}
