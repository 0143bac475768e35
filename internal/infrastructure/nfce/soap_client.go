package nfce

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"

	"github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

// ── Constantes SOAP ───────────────────────────────────────────────────────────

const (
	soapNS12 = "http://www.w3.org/2003/05/soap-envelope"
	wsdlBase = "http://www.portalfiscal.inf.br/nfe/wsdl/"

	msgConnection = "Erro de conexão com SEFAZ. Verifique sua conexão com a internet."
)

var soapOperations = map[Service]string{
	ServiceAuthorization: "nfeAutorizacaoLote",
	ServiceStatusCheck:   "nfeStatusServicoNF",
	ServiceConsult:       "nfeConsultaNF",
}

// ── Resultados ────────────────────────────────────────────────────────────────

// AuthorizationResult es la respuesta de la SEFAZ a la autorización síncrona.
// Status "999" indica que no se obtuvo respuesta de la SEFAZ.
type AuthorizationResult struct {
	Success      bool
	Status       string // cStat
	Message      string // xMotivo
	Protocol     string // nProt
	AuthorizedAt *time.Time
	ProtNFe      string // <protNFe> devuelto, para armar el nfeProc
	RawResponse  string
}

// IsConnectionError indica que la SEFAZ no emitió una determinación.
func (r *AuthorizationResult) IsConnectionError() bool {
	return r.Status == fiscal.StatusConnectionError
}

// ServiceStatus es el resultado de NFeStatusServico4.
type ServiceStatus struct {
	Online  bool
	Status  string
	Message string
}

// ConsultResult es el resultado de NFeConsultaProtocolo4.
type ConsultResult struct {
	Status       string // cStat de retConsSitNFe
	Message      string
	ProtStatus   string // cStat de protNFe/infProt (vacío si no hay protocolo)
	ProtMessage  string
	Protocol     string
	AuthorizedAt *time.Time
	ProtNFe      string
	RawResponse  string
}

// IsAuthorized indica si la consulta confirma la autorización de la nota.
func (r *ConsultResult) IsAuthorized() bool {
	return r.ProtStatus == fiscal.StatusAuthorized ||
		(r.Status == fiscal.StatusAuthorized && r.Protocol != "")
}

// ── Cliente ───────────────────────────────────────────────────────────────────

// SefazClient implementa los web services NFC-e sobre SOAP 1.2 con mTLS.
// No reintenta: cada llamada es un único intento acotado por el contexto.
type SefazClient struct {
	httpClient *http.Client
	resolve    EndpointResolver
	now        func() time.Time
	rootCAs    *x509.CertPool

	mu      sync.Mutex
	clients map[string]*http.Client // por huella SHA-256 del certificado mTLS
}

// Option configura el cliente.
type Option func(*SefazClient)

// WithHTTPClient fija el cliente HTTP (el certificado mTLS se ignora).
func WithHTTPClient(c *http.Client) Option {
	return func(s *SefazClient) { s.httpClient = c }
}

// WithEndpointResolver reemplaza la tabla de web services por UF.
func WithEndpointResolver(r EndpointResolver) Option {
	return func(s *SefazClient) { s.resolve = r }
}

// WithRootCAs fija las CAs que validan el servidor de la SEFAZ (cadena ICP-Brasil).
// Sin esta opción se usan las CAs del sistema.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(s *SefazClient) { s.rootCAs = pool }
}

// WithClock fija el reloj usado para el idLote.
func WithClock(now func() time.Time) Option {
	return func(s *SefazClient) { s.now = now }
}

// NewSefazClient construye el cliente.
func NewSefazClient(opts ...Option) *SefazClient {
	c := &SefazClient{resolve: ResolveEndpoint, now: time.Now, clients: make(map[string]*http.Client)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"soap12:Envelope"`
	XmlnsS  string   `xml:"xmlns:soap12,attr"`
	Body    soapBody `xml:"soap12:Body"`
}

type soapBody struct {
	Msg nfeDadosMsg `xml:"nfeDadosMsg"`
}

type nfeDadosMsg struct {
	Xmlns   string `xml:"xmlns,attr"`
	Content string `xml:",innerxml"`
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// Authorize envía la NFC-e firmada en un lote síncrono (indSinc=1).
// Fallas de red, timeout o respuesta ilegible devuelven Status "999" sin error;
// el error queda para problemas de configuración previos al envío.
func (c *SefazClient) Authorize(ctx context.Context, signedXML []byte, uf, environment string, cert *tls.Certificate) (*AuthorizationResult, error) {
	url, err := c.resolve(uf, environment, ServiceAuthorization)
	if err != nil {
		return nil, err
	}
	lotID := strconv.FormatInt(c.now().UnixMilli(), 10)[3:]
	var payload strings.Builder
	payload.WriteString(`<enviNFe xmlns="` + NsNFe + `" versao="` + LayoutVersion + `">`)
	payload.WriteString(`<idLote>` + lotID + `</idLote>`)
	payload.WriteString(`<indSinc>1</indSinc>`)
	payload.Write(stripDeclaration(signedXML))
	payload.WriteString(`</enviNFe>`)

	raw, err := c.call(ctx, url, ServiceAuthorization, payload.String(), cert)
	if err != nil {
		return connectionFailure(err), nil
	}
	res, err := parseAuthorization(raw)
	if err != nil {
		return &AuthorizationResult{
			Status:      fiscal.StatusConnectionError,
			Message:     fmt.Sprintf("Erro ao processar resposta da SEFAZ: %v", err),
			RawResponse: string(raw),
		}, nil
	}
	return res, nil
}

// CheckStatus consulta NFeStatusServico4; cStat 107 = serviço em operação.
func (c *SefazClient) CheckStatus(ctx context.Context, uf, environment string, cert *tls.Certificate) (*ServiceStatus, error) {
	url, err := c.resolve(uf, environment, ServiceStatusCheck)
	if err != nil {
		return nil, err
	}
	cUF, ok := fiscal.UFCode(uf)
	if !ok {
		return nil, fmt.Errorf("sefaz: UF desconhecida %q", uf)
	}
	payload := `<consStatServ xmlns="` + NsNFe + `" versao="` + LayoutVersion + `">` +
		`<tpAmb>` + fiscal.TpAmb(environment) + `</tpAmb>` +
		`<cUF>` + strconv.Itoa(cUF) + `</cUF>` +
		`<xServ>STATUS</xServ></consStatServ>`

	raw, err := c.call(ctx, url, ServiceStatusCheck, payload, cert)
	if err != nil {
		return &ServiceStatus{Status: fiscal.StatusConnectionError, Message: "Erro: " + err.Error()}, nil
	}
	ret, err := findResponse(raw, "retConsStatServ")
	if err != nil {
		return &ServiceStatus{Status: fiscal.StatusConnectionError, Message: "Erro: " + err.Error()}, nil
	}
	cStat := childText(ret, "cStat")
	xMotivo := childText(ret, "xMotivo")
	return &ServiceStatus{
		Online:  cStat == fiscal.StatusServiceRunning,
		Status:  cStat,
		Message: cStat + " - " + xMotivo,
	}, nil
}

// ConsultByAccessKey consulta la situación de la NFC-e por su chave de acesso.
func (c *SefazClient) ConsultByAccessKey(ctx context.Context, accessKey, uf, environment string, cert *tls.Certificate) (*ConsultResult, error) {
	if !fiscal.ValidateAccessKey(accessKey) {
		return nil, fmt.Errorf("sefaz: chave de acesso inválida %q", accessKey)
	}
	url, err := c.resolve(uf, environment, ServiceConsult)
	if err != nil {
		return nil, err
	}
	payload := `<consSitNFe xmlns="` + NsNFe + `" versao="` + LayoutVersion + `">` +
		`<tpAmb>` + fiscal.TpAmb(environment) + `</tpAmb>` +
		`<xServ>CONSULTAR</xServ>` +
		`<chNFe>` + accessKey + `</chNFe></consSitNFe>`

	raw, err := c.call(ctx, url, ServiceConsult, payload, cert)
	if err != nil {
		return &ConsultResult{Status: fiscal.StatusConnectionError, Message: msgConnection}, nil
	}
	ret, err := findResponse(raw, "retConsSitNFe")
	if err != nil {
		return &ConsultResult{Status: fiscal.StatusConnectionError, Message: err.Error(), RawResponse: string(raw)}, nil
	}
	res := &ConsultResult{
		Status:      childText(ret, "cStat"),
		Message:     childText(ret, "xMotivo"),
		RawResponse: string(raw),
	}
	if prot := ret.FindElement("./protNFe"); prot != nil {
		if inf := prot.FindElement("./infProt"); inf != nil {
			res.ProtStatus = childText(inf, "cStat")
			res.ProtMessage = childText(inf, "xMotivo")
			res.Protocol = childText(inf, "nProt")
			res.AuthorizedAt = parseTime(childText(inf, "dhRecbto"))
		}
		res.ProtNFe = serialize(prot)
	}
	return res, nil
}

// ── Transporte ────────────────────────────────────────────────────────────────

func (c *SefazClient) call(ctx context.Context, url string, svc Service, payload string, cert *tls.Certificate) ([]byte, error) {
	ns := wsdlBase + string(svc)
	envelope := soapEnvelope{
		XmlnsS: soapNS12,
		Body:   soapBody{Msg: nfeDadosMsg{Xmlns: ns, Content: payload}},
	}
	body, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(append([]byte(xml.Header), body...)))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8; action="`+ns+"/"+soapOperations[svc]+`"`)

	resp, err := c.client(cert).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("soap: timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("soap: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, fmt.Errorf("soap: leer respuesta: %w", err)
	}
	if resp.StatusCode >= 300 && !bytes.Contains(raw, []byte("Envelope")) {
		return nil, fmt.Errorf("soap: HTTP %d", resp.StatusCode)
	}
	return raw, nil
}

// client devuelve el cliente HTTP del certificado. Un transporte por certificado
// mantiene vivas las conexiones TLS entre llamadas del mismo emisor.
func (c *SefazClient) client(cert *tls.Certificate) *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	key := certFingerprint(cert)

	c.mu.Lock()
	defer c.mu.Unlock()
	if hc, ok := c.clients[key]; ok {
		return hc
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, RootCAs: c.rootCAs}
	if cert != nil {
		tlsCfg.Certificates = []tls.Certificate{*cert}
	}
	hc := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSClientConfig:     tlsCfg,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	c.clients[key] = hc
	return hc
}

// CloseIdleConnections cierra las conexiones ociosas de todos los transportes.
func (c *SefazClient) CloseIdleConnections() {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, hc := range c.clients {
		hc.CloseIdleConnections()
	}
}

func certFingerprint(cert *tls.Certificate) string {
	if cert == nil || len(cert.Certificate) == 0 {
		return ""
	}
	sum := sha256.Sum256(cert.Certificate[0])
	return hex.EncodeToString(sum[:])
}

// ── Parseo de respuestas ──────────────────────────────────────────────────────

func parseAuthorization(raw []byte) (*AuthorizationResult, error) {
	ret, err := findResponse(raw, "retEnviNFe")
	if err != nil {
		return nil, err
	}
	cStat := childText(ret, "cStat")
	xMotivo := childText(ret, "xMotivo")
	res := &AuthorizationResult{Status: cStat, Message: xMotivo, RawResponse: string(raw)}

	prot := ret.FindElement("./protNFe")
	var inf *etree.Element
	if prot != nil {
		inf = prot.FindElement("./infProt")
	}

	switch cStat {
	case fiscal.StatusAuthorized:
		if inf == nil {
			return nil, errors.New("protocolo não encontrado na resposta")
		}
		fillProtocol(res, prot, inf)
		res.Success = true
	case fiscal.StatusBatchProcessed:
		if inf == nil {
			res.Message = "Lote processado mas sem protocolo retornado"
			return res, nil
		}
		res.Status = childText(inf, "cStat")
		res.Message = childText(inf, "xMotivo")
		if res.Status == fiscal.StatusAuthorized {
			fillProtocol(res, prot, inf)
			res.Success = true
		} else {
			res.Message = "Nota rejeitada: " + res.Message
		}
	}
	return res, nil
}

func fillProtocol(res *AuthorizationResult, prot, inf *etree.Element) {
	res.Protocol = childText(inf, "nProt")
	res.AuthorizedAt = parseTime(childText(inf, "dhRecbto"))
	if m := childText(inf, "xMotivo"); m != "" {
		res.Message = m
	}
	res.ProtNFe = serialize(prot)
}

// findResponse parsea el sobre SOAP, elimina los prefijos de namespace y devuelve el nodo tag.
func findResponse(raw []byte, tag string) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("resposta inválida da SEFAZ: %w", err)
	}
	if doc.Root() == nil {
		return nil, errors.New("resposta vazia da SEFAZ")
	}
	stripPrefixes(doc.Root())
	if fault := doc.FindElement("//Fault"); fault != nil {
		reason := "sem detalhe"
		if txt := fault.FindElement(".//Text"); txt != nil {
			reason = strings.TrimSpace(txt.Text())
		}
		return nil, fmt.Errorf("SOAP Fault: %s", reason)
	}
	el := doc.FindElement("//" + tag)
	if el == nil {
		return nil, fmt.Errorf("resposta inválida da SEFAZ: %s ausente", tag)
	}
	return el, nil
}

func stripPrefixes(el *etree.Element) {
	el.Space = ""
	for _, ch := range el.ChildElements() {
		stripPrefixes(ch)
	}
}

func childText(el *etree.Element, tag string) string {
	if ch := el.FindElement("./" + tag); ch != nil {
		return strings.TrimSpace(ch.Text())
	}
	return ""
}

func serialize(el *etree.Element) string {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func connectionFailure(err error) *AuthorizationResult {
	msg := fmt.Sprintf("Erro ao comunicar com SEFAZ: %v", err)
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		msg = msgConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		msg = msgConnection
	}
	return &AuthorizationResult{Status: fiscal.StatusConnectionError, Message: msg}
}

func stripDeclaration(b []byte) []byte {
	b = bytes.TrimSpace(b)
	if bytes.HasPrefix(b, []byte("<?xml")) {
		if end := bytes.Index(b, []byte("?>")); end >= 0 {
			return bytes.TrimSpace(b[end+2:])
		}
	}
	return b
}
