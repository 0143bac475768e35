// Package signertest genera certificados ICP-Brasil de prueba (autofirmados) para los tests.
package signertest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"sync"
	"testing"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

// CNPJ del emisor de prueba (dígitos verificadores válidos).
const CNPJ = "11222333000181"

// Password del contenedor PKCS#12 de prueba.
const Password = "senha-teste"

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
	keyErr  error
)

// Key devuelve una llave RSA 2048 compartida por todos los tests del proceso.
func Key(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		key, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if keyErr != nil {
		t.Fatalf("generar llave RSA: %v", keyErr)
	}
	return key
}

// Certificate emite un certificado autofirmado con CN "EMPRESA TESTE LTDA:<cnpj>".
func Certificate(t testing.TB, cnpj string, notBefore, notAfter time.Time) *x509.Certificate {
	t.Helper()
	k := Key(t)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   "EMPRESA TESTE LTDA:" + cnpj,
			Organization: []string{"EMPRESA TESTE LTDA"},
		},
		NotBefore:   notBefore,
		NotAfter:    notAfter,
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &k.PublicKey, k)
	if err != nil {
		t.Fatalf("crear certificado: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsear certificado: %v", err)
	}
	return cert
}

// ValidCertificate emite un certificado vigente para CNPJ.
func ValidCertificate(t testing.TB) *x509.Certificate {
	t.Helper()
	now := time.Now()
	return Certificate(t, CNPJ, now.Add(-time.Hour), now.Add(24*time.Hour))
}

// KeystoreBase64 empaqueta cert + llave en PKCS#12 protegido con password y lo codifica en base64.
func KeystoreBase64(t testing.TB, cert *x509.Certificate, password string) string {
	t.Helper()
	pfx, err := pkcs12.Modern.Encode(Key(t), cert, nil, password)
	if err != nil {
		t.Fatalf("codificar PKCS#12: %v", err)
	}
	return base64.StdEncoding.EncodeToString(pfx)
}
