package fiscal

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/jhoicas/nfce-emissor/internal/domain/repository"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce/signer"
)

// TxRunner ejecuta una función dentro de una transacción que incluye los repos de perfil y documentos.
// Si fn devuelve error se hace rollback.
type TxRunner interface {
	RunFiscal(ctx context.Context, fn func(
		profileRepo repository.FiscalProfileRepository,
		docRepo repository.IssuedDocumentRepository,
	) error) error
}

// DocumentBuilder arma el XML sin firmar de la NFC-e.
type DocumentBuilder interface {
	Build(in *nfce.BuildInput) ([]byte, error)
}

// CertificateLoader obtiene el material de firma del perfil (A1 en archivo, A3 en token).
type CertificateLoader interface {
	LoadFromKeystore(container, password string) (*signer.Material, error)
	LoadFromToken(pin, libraryPath string) (*signer.Material, error)
}

// Signer firma el elemento target del XML (firma enveloped).
type Signer interface {
	Sign(xmlBytes []byte, m *signer.Material, target string) ([]byte, error)
}

// SefazGateway son los web services de la SEFAZ usados por el módulo.
type SefazGateway interface {
	Authorize(ctx context.Context, signedXML []byte, uf, environment string, cert *tls.Certificate) (*nfce.AuthorizationResult, error)
	CheckStatus(ctx context.Context, uf, environment string, cert *tls.Certificate) (*nfce.ServiceStatus, error)
	ConsultByAccessKey(ctx context.Context, accessKey, uf, environment string, cert *tls.Certificate) (*nfce.ConsultResult, error)
}

// DanfeRenderer convierte el nfeProc en la representación imprimible (PDF o texto).
type DanfeRenderer interface {
	Render(ctx context.Context, procXML []byte) ([]byte, error)
}

// ArtifactStore persiste los artefactos legales particionados por fecha y clave de acceso.
type ArtifactStore interface {
	SaveXML(ctx context.Context, accessKey string, at time.Time, data []byte) (string, error)
	SavePDF(ctx context.Context, accessKey string, at time.Time, data []byte) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

// SecretSealer cifra y descifra los campos sensibles del perfil ("encrypted:<token>").
type SecretSealer interface {
	Seal(value string) (string, error)
	Reveal(value string) (string, error)
}

// TextRenderer genera la DANFE en texto plano para impresoras sin soporte de imagen.
type TextRenderer interface {
	RenderString(procXML []byte) (string, error)
}
