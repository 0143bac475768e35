package fiscal

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jhoicas/nfce-emissor/internal/application/dto"
	"github.com/jhoicas/nfce-emissor/internal/domain"
	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	"github.com/jhoicas/nfce-emissor/internal/domain/repository"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/nfce/signer"
	pkgfiscal "github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

var (
	cityCodePattern = regexp.MustCompile(`^\d{7}$`)
	cscIDPattern    = regexp.MustCompile(`^\d{1,6}$`)
)

// ConfigUseCase administra el perfil fiscal del emisor.
// Los secretos se guardan cifrados y nunca se devuelven.
type ConfigUseCase struct {
	tx       TxRunner
	profiles repository.FiscalProfileRepository
	certs    CertificateLoader
	secrets  SecretSealer
	now      func() time.Time
}

// NewConfigUseCase construye el caso de uso.
func NewConfigUseCase(tx TxRunner, profiles repository.FiscalProfileRepository, certs CertificateLoader, secrets SecretSealer) *ConfigUseCase {
	return &ConfigUseCase{tx: tx, profiles: profiles, certs: certs, secrets: secrets, now: time.Now}
}

// Get devuelve el perfil activo. domain.ErrNoActiveProfile si no hay ninguno.
func (uc *ConfigUseCase) Get(ctx context.Context) (*dto.FiscalConfigResponse, error) {
	p, err := uc.profiles.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNoActiveProfile
	}
	return entityToConfigResponse(p), nil
}

// Save valida y guarda un perfil nuevo, desactivando el anterior en la misma transacción.
// Un secreto omitido en la petición se conserva del perfil activo (mismo tipo de certificado).
func (uc *ConfigUseCase) Save(ctx context.Context, in dto.FiscalConfigRequest) (*dto.FiscalConfigResponse, error) {
	normalizeConfig(&in)

	current, err := uc.profiles.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	p := &entity.FiscalProfile{
		CNPJ:            in.CNPJ,
		IE:              in.IE,
		IM:              in.IM,
		LegalName:       in.LegalName,
		TradeName:       in.TradeName,
		Street:          in.Street,
		Number:          in.Number,
		Complement:      in.Complement,
		District:        in.District,
		CityCode:        in.CityCode,
		CityName:        in.CityName,
		UF:              in.UF,
		CEP:             in.CEP,
		Phone:           in.Phone,
		CRT:             in.CRT,
		Series:          in.Series,
		LastNumber:      in.LastNumber,
		Environment:     in.Environment,
		ContingencyMode: in.ContingencyMode,
		CertificateType: in.CertificateType,
		PKCS11Library:   in.PKCS11Library,
		CSCID:           in.CSCID,
		Active:          true,
	}
	if p.CSCID == "" {
		p.CSCID = nfce.DefaultCSCID
	}
	if err := uc.fillSecrets(p, in, current); err != nil {
		return nil, err
	}
	if err := validateProfile(p); err != nil {
		return nil, err
	}

	now := uc.now()
	p.CreatedAt, p.UpdatedAt = now, now
	err = uc.tx.RunFiscal(ctx, func(profiles repository.FiscalProfileRepository, _ repository.IssuedDocumentRepository) error {
		// La numeración nunca retrocede al volver a un CNPJ y serie ya usados.
		last, err := profiles.MaxLastNumber(ctx, p.CNPJ, p.Series)
		if err != nil {
			return err
		}
		p.LastNumber = max(p.LastNumber, last)
		if err := profiles.DeactivateAll(ctx); err != nil {
			return err
		}
		return profiles.Create(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("salvar configuração fiscal: %w", err)
	}
	return entityToConfigResponse(p), nil
}

// TestCertificate carga el certificado A1 enviado (o el del perfil activo) y lo valida contra el CNPJ.
// Los errores de carga se devuelven en el cuerpo (Error) y no como error de la operación.
func (uc *ConfigUseCase) TestCertificate(ctx context.Context, in dto.CertificateTestRequest) (*dto.CertificateTestResponse, error) {
	active, err := uc.profiles.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	var m *signer.Material
	switch {
	case strings.TrimSpace(in.CertificateA1) != "":
		if in.CertificatePassword == "" {
			return nil, fmt.Errorf("%w: senha do certificado obrigatória", domain.ErrInvalidInput)
		}
		m, err = uc.certs.LoadFromKeystore(in.CertificateA1, in.CertificatePassword)
	case active != nil:
		m, err = loadMaterial(uc.certs, uc.secrets, active)
	default:
		return nil, domain.ErrNoActiveProfile
	}
	if err != nil {
		return &dto.CertificateTestResponse{Error: err.Error()}, nil
	}

	now := uc.now()
	info := signer.GetInfo(m.Certificate, now)
	out := &dto.CertificateTestResponse{
		CommonName:   info.CommonName,
		Organization: info.Organization,
		CNPJ:         info.CNPJ,
		IssuerName:   info.IssuerName,
		IssuerOrg:    info.IssuerOrg,
		SerialNumber: info.SerialNumber,
		ValidFrom:    info.ValidFrom,
		ValidTo:      info.ValidTo,
		IsValid:      info.IsValid,
	}
	if active == nil {
		out.Error = domain.ErrNoActiveProfile.Error()
		return out, nil
	}
	if err := signer.Validate(m.Certificate, active.CNPJ, now); err != nil {
		out.Error = err.Error()
		return out, nil
	}
	out.MatchesCNPJ = true
	return out, nil
}

// ── helpers privados ──────────────────────────────────────────────────────────

func normalizeConfig(in *dto.FiscalConfigRequest) {
	in.CNPJ = pkgfiscal.OnlyDigits(in.CNPJ)
	in.CEP = pkgfiscal.OnlyDigits(in.CEP)
	in.IE = strings.TrimSpace(in.IE)
	in.UF = strings.ToUpper(strings.TrimSpace(in.UF))
	in.CityCode = strings.TrimSpace(in.CityCode)
	in.Environment = strings.ToLower(strings.TrimSpace(in.Environment))
	in.CertificateType = strings.ToUpper(strings.TrimSpace(in.CertificateType))
	in.LegalName = strings.TrimSpace(in.LegalName)
	in.CSCID = strings.TrimSpace(in.CSCID)
}

// fillSecrets cifra los secretos recibidos o reutiliza los ya cifrados del perfil activo.
func (uc *ConfigUseCase) fillSecrets(p *entity.FiscalProfile, in dto.FiscalConfigRequest, current *entity.FiscalProfile) error {
	sameType := current != nil && current.CertificateType == p.CertificateType

	seal := func(plain, existing string) (string, error) {
		if plain == "" {
			return existing, nil
		}
		return uc.secrets.Seal(plain)
	}
	var existingPass, existingPin, existingCSC, existingA1 string
	if current != nil {
		existingCSC = current.CSCToken
	}
	if sameType {
		existingA1 = current.CertificateA1
		existingPass = current.CertificatePassword
		existingPin = current.CertificatePin
	}

	var err error
	p.CertificateA1 = strings.TrimSpace(in.CertificateA1)
	if p.CertificateA1 == "" {
		p.CertificateA1 = existingA1
	}
	if p.CertificatePassword, err = seal(in.CertificatePassword, existingPass); err != nil {
		return fmt.Errorf("criptografar senha do certificado: %w", err)
	}
	if p.CertificatePin, err = seal(in.CertificatePin, existingPin); err != nil {
		return fmt.Errorf("criptografar PIN do certificado: %w", err)
	}
	if p.CSCToken, err = seal(strings.TrimSpace(in.CSCToken), existingCSC); err != nil {
		return fmt.Errorf("criptografar CSC: %w", err)
	}
	return nil
}

// validateProfile comprueba los campos obligatorios del emisor.
func validateProfile(p *entity.FiscalProfile) error {
	invalid := func(msg string) error { return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg) }

	switch {
	case !pkgfiscal.ValidateCNPJ(p.CNPJ):
		return invalid("CNPJ inválido")
	case p.IE == "":
		return invalid("Inscrição Estadual obrigatória")
	case p.LegalName == "":
		return invalid("Razão social obrigatória")
	case p.Street == "" || p.Number == "" || p.District == "" || p.CityName == "":
		return invalid("Endereço incompleto")
	case !cityCodePattern.MatchString(p.CityCode):
		return invalid("Código do município deve ter 7 dígitos")
	case len(p.CEP) != 8:
		return invalid("CEP deve ter 8 dígitos")
	case p.CRT < entity.CRTSimplesNacional || p.CRT > entity.CRTSimplesMEI:
		return invalid("CRT inválido")
	case p.Series < 0 || p.Series > 999:
		return invalid("Série deve estar entre 0 e 999")
	case p.LastNumber < 0:
		return invalid("Último número não pode ser negativo")
	case p.Environment != pkgfiscal.EnvironmentProduction && p.Environment != pkgfiscal.EnvironmentHomologation:
		return invalid("Ambiente deve ser producao ou homologacao")
	case !cscIDPattern.MatchString(p.CSCID):
		return invalid("Identificador do CSC inválido")
	case p.CSCToken == "":
		return invalid("Token CSC obrigatório")
	}
	if _, ok := pkgfiscal.UFCode(p.UF); !ok {
		return invalid("UF inválida")
	}

	switch p.CertificateType {
	case entity.CertificateTypeA1:
		if p.CertificateA1 == "" || p.CertificatePassword == "" {
			return invalid("Certificado A1 e senha obrigatórios")
		}
	case entity.CertificateTypeA3:
		if p.CertificatePin == "" {
			return invalid("PIN do certificado A3 obrigatório")
		}
	default:
		return domain.ErrInvalidCertificateType
	}
	return nil
}
