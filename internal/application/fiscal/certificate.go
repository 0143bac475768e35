package fiscal

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/jhoicas/nfce-emissor/internal/domain"
	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce/signer"
)

// loadMaterial obtiene el certificado de firma según el tipo configurado en el perfil.
// Los secretos del perfil siguen cifrados; el loader (A1) o secrets (A3) los revela.
func loadMaterial(certs CertificateLoader, secrets SecretSealer, p *entity.FiscalProfile) (*signer.Material, error) {
	switch p.CertificateType {
	case entity.CertificateTypeA1:
		if p.CertificateA1 == "" || p.CertificatePassword == "" {
			return nil, errors.New("Certificado A1 ou senha não configurados")
		}
		return certs.LoadFromKeystore(p.CertificateA1, p.CertificatePassword)
	case entity.CertificateTypeA3:
		if p.CertificatePin == "" {
			return nil, errors.New("PIN do certificado A3 não configurado")
		}
		pin, err := secrets.Reveal(p.CertificatePin)
		if err != nil {
			return nil, fmt.Errorf("descriptografar PIN do certificado: %w", err)
		}
		return certs.LoadFromToken(pin, p.PKCS11Library)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCertificateType, p.CertificateType)
	}
}

// clientCertificate arma el certificado mTLS para los web services de la SEFAZ.
func clientCertificate(certs CertificateLoader, secrets SecretSealer, p *entity.FiscalProfile) (*tls.Certificate, error) {
	m, err := loadMaterial(certs, secrets, p)
	if err != nil {
		return nil, err
	}
	c := m.TLSCertificate()
	return &c, nil
}
