package fiscal

import (
	"context"
	"time"

	"github.com/jhoicas/nfce-emissor/internal/application/dto"
	"github.com/jhoicas/nfce-emissor/internal/domain"
	"github.com/jhoicas/nfce-emissor/internal/domain/repository"
)

// StatusUseCase consulta la disponibilidad del web service de la SEFAZ del perfil activo.
type StatusUseCase struct {
	profiles repository.FiscalProfileRepository
	certs    CertificateLoader
	secrets  SecretSealer
	sefaz    SefazGateway
	timeout  time.Duration
}

// NewStatusUseCase construye el caso de uso. timeout <= 0 usa DefaultStatusTimeout.
func NewStatusUseCase(profiles repository.FiscalProfileRepository, certs CertificateLoader, secrets SecretSealer, sefaz SefazGateway, timeout time.Duration) *StatusUseCase {
	if timeout <= 0 {
		timeout = DefaultStatusTimeout
	}
	return &StatusUseCase{profiles: profiles, certs: certs, secrets: secrets, sefaz: sefaz, timeout: timeout}
}

// Check ejecuta NFeStatusServico4. Un fallo de conexión se informa como Online=false, no como error.
func (uc *StatusUseCase) Check(ctx context.Context) (*dto.SefazStatusResponse, error) {
	p, err := uc.profiles.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNoActiveProfile
	}
	cert, err := clientCertificate(uc.certs, uc.secrets, p)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	st, err := uc.sefaz.CheckStatus(cctx, p.UF, p.Environment, cert)
	if err != nil {
		return nil, err
	}
	return &dto.SefazStatusResponse{
		Online:      st.Online,
		Status:      st.Status,
		Message:     st.Message,
		UF:          p.UF,
		Environment: p.Environment,
	}, nil
}
