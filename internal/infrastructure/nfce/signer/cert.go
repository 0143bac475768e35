// Carga del certificado digital ICP-Brasil: A1 (PKCS#12 en base64) y A3 (token, no implementado).

package signer

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/jhoicas/nfce-emissor/internal/domain"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/cache"
	"github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

// DefaultCacheTTL es la vigencia del material cargado en memoria.
const DefaultCacheTTL = time.Hour

var cnpjInSubject = regexp.MustCompile(`(\d{14})`)

// Material es el par certificado/llave listo para firmar.
// En A3 la llave no sale del token: PrivateKey es la operación de firma del dispositivo.
type Material struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.Signer
	Chain       []*x509.Certificate
	LoadedAt    time.Time
}

// TLSCertificate arma el certificado cliente para mTLS con la SEFAZ.
func (m *Material) TLSCertificate() tls.Certificate {
	chain := [][]byte{m.Certificate.Raw}
	for _, c := range m.Chain {
		chain = append(chain, c.Raw)
	}
	return tls.Certificate{
		Certificate: chain,
		PrivateKey:  m.PrivateKey,
		Leaf:        m.Certificate,
	}
}

// Info resume la identidad y vigencia del certificado para diagnóstico del operador.
type Info struct {
	CommonName   string    `json:"commonName"`
	Organization string    `json:"organizationName"`
	CNPJ         string    `json:"cnpj"`
	IssuerName   string    `json:"issuerCommonName"`
	IssuerOrg    string    `json:"issuerOrganizationName"`
	SerialNumber string    `json:"serialNumber"`
	ValidFrom    time.Time `json:"validFrom"`
	ValidTo      time.Time `json:"validTo"`
	IsValid      bool      `json:"isValid"`
}

// SecretRevealer descifra campos con marcador "encrypted:" (implementado por el vault).
type SecretRevealer interface {
	Reveal(value string) (string, error)
}

// CertificateLoader carga y cachea el material de firma.
type CertificateLoader struct {
	secrets SecretRevealer
	cache   *cache.TTLCache[string, *Material]
	ttl     time.Duration
	now     func() time.Time
}

// NewCertificateLoader crea el loader. ttl <= 0 usa DefaultCacheTTL.
func NewCertificateLoader(secrets SecretRevealer, c *cache.TTLCache[string, *Material], ttl time.Duration) *CertificateLoader {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if c == nil {
		c = cache.NewTTLCache[string, *Material]()
	}
	return &CertificateLoader{secrets: secrets, cache: c, ttl: ttl, now: time.Now}
}

// LoadFromKeystore decodifica el contenedor PKCS#12 en base64 y extrae certificado y llave.
// La contraseña puede venir cifrada ("encrypted:<token>").
func (l *CertificateLoader) LoadFromKeystore(container, password string) (*Material, error) {
	key := cacheKey(container, password)
	if m, ok := l.cache.Get(key); ok {
		return m, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(container))
	if err != nil {
		return nil, fmt.Errorf("signer: certificado A1 não é base64 válido: %w", err)
	}
	plainPass := password
	if l.secrets != nil {
		plainPass, err = l.secrets.Reveal(password)
		if err != nil {
			return nil, fmt.Errorf("signer: descriptografar senha do certificado: %w", err)
		}
	}

	priv, cert, chain, err := pkcs12.DecodeChain(raw, plainPass)
	if err != nil {
		return nil, fmt.Errorf("signer: falha ao carregar certificado A1: %w", err)
	}
	if cert == nil || priv == nil {
		return nil, errors.New("signer: certificado ou chave privada não encontrados no arquivo .pfx")
	}
	s, ok := priv.(crypto.Signer)
	if !ok {
		return nil, errors.New("signer: chave privada não suporta assinatura")
	}
	if _, ok := s.Public().(*rsa.PublicKey); !ok {
		return nil, errors.New("signer: somente chaves RSA são suportadas")
	}

	m := &Material{Certificate: cert, PrivateKey: s, Chain: chain, LoadedAt: l.now()}
	l.cache.Put(key, m, l.ttl)
	return m, nil
}

// LoadFromToken es la ruta del certificado A3 (token/smartcard vía PKCS#11).
// Requiere el driver de la plataforma; siempre falla con domain.ErrNotImplemented.
func (l *CertificateLoader) LoadFromToken(pin, libraryPath string) (*Material, error) {
	if pin == "" {
		return nil, errors.New("signer: PIN do certificado A3 não configurado")
	}
	return nil, fmt.Errorf("signer: certificado A3 requer driver PKCS#11 (%s): %w", libraryPath, domain.ErrNotImplemented)
}

// ClearCache descarta el material cargado.
func (l *CertificateLoader) ClearCache() {
	l.cache.Clear()
}

func cacheKey(container, password string) string {
	h := sha256.New()
	h.Write([]byte(container))
	h.Write([]byte{0})
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}

// GetInfo extrae la identidad del certificado. El CNPJ se toma de los primeros
// 14 dígitos consecutivos del CN (convención "RAZAO SOCIAL:CNPJ" de la ICP-Brasil).
func GetInfo(cert *x509.Certificate, now time.Time) Info {
	cn := cert.Subject.CommonName
	cnpj := ""
	if m := cnpjInSubject.FindStringSubmatch(cn); m != nil {
		cnpj = m[1]
	}
	return Info{
		CommonName:   cn,
		Organization: firstOrEmpty(cert.Subject.Organization),
		CNPJ:         cnpj,
		IssuerName:   cert.Issuer.CommonName,
		IssuerOrg:    firstOrEmpty(cert.Issuer.Organization),
		SerialNumber: cert.SerialNumber.Text(16),
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
		IsValid:      !now.Before(cert.NotBefore) && !now.After(cert.NotAfter),
	}
}

// Validate verifica vigencia y que el CNPJ del certificado coincida (solo dígitos) con expectedCNPJ.
func Validate(cert *x509.Certificate, expectedCNPJ string, now time.Time) error {
	info := GetInfo(cert, now)
	if !info.IsValid {
		return errors.New("Certificado expirado ou ainda não válido")
	}
	got := fiscal.OnlyDigits(info.CNPJ)
	want := fiscal.OnlyDigits(expectedCNPJ)
	if got != want {
		return fmt.Errorf("CNPJ do certificado (%s) não corresponde ao CNPJ esperado (%s)", got, want)
	}
	return nil
}

func firstOrEmpty(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
