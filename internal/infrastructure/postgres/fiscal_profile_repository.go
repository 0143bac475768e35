package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
	"github.com/jhoicas/nfce-emissor/internal/domain/repository"
)

var _ repository.FiscalProfileRepository = (*FiscalProfileRepo)(nil)

// FiscalProfileRepo implementa FiscalProfileRepository sobre PostgreSQL (pool o tx).
type FiscalProfileRepo struct {
	q Querier
}

// NewFiscalProfileRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFiscalProfileRepository(q Querier) *FiscalProfileRepo {
	return &FiscalProfileRepo{q: q}
}

const profileColumns = `
	id, cnpj, ie, im, legal_name, trade_name,
	street, number, complement, district, city_code, city_name, uf, cep, phone,
	crt, series, last_number, environment, contingency_mode,
	certificate_type, certificate_a1, certificate_password, certificate_pin, pkcs11_library,
	csc_id, csc_token, active, created_at, updated_at`

func (r *FiscalProfileRepo) Create(ctx context.Context, p *entity.FiscalProfile) error {
	const q = `
		INSERT INTO fiscal_profiles
			(cnpj, ie, im, legal_name, trade_name,
			 street, number, complement, district, city_code, city_name, uf, cep, phone,
			 crt, series, last_number, environment, contingency_mode,
			 certificate_type, certificate_a1, certificate_password, certificate_pin, pkcs11_library,
			 csc_id, csc_token, active, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			 $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, now(), now())
		RETURNING id, created_at, updated_at`
	err := r.q.QueryRow(ctx, q,
		p.CNPJ, p.IE, p.IM, p.LegalName, p.TradeName,
		p.Street, p.Number, p.Complement, p.District, p.CityCode, p.CityName, p.UF, p.CEP, p.Phone,
		p.CRT, p.Series, p.LastNumber, p.Environment, p.ContingencyMode,
		p.CertificateType, p.CertificateA1, p.CertificatePassword, p.CertificatePin, p.PKCS11Library,
		p.CSCID, p.CSCToken, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert fiscal_profile: %w", err)
	}
	return nil
}

func (r *FiscalProfileRepo) GetByID(ctx context.Context, id int64) (*entity.FiscalProfile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM fiscal_profiles WHERE id = $1`, id)
}

// GetActive devuelve nil, nil si no hay perfil activo.
func (r *FiscalProfileRepo) GetActive(ctx context.Context) (*entity.FiscalProfile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM fiscal_profiles WHERE active = true ORDER BY id DESC LIMIT 1`)
}

// GetActiveForUpdate bloquea la fila activa; solo tiene sentido dentro de una transacción.
func (r *FiscalProfileRepo) GetActiveForUpdate(ctx context.Context) (*entity.FiscalProfile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM fiscal_profiles WHERE active = true ORDER BY id DESC LIMIT 1 FOR UPDATE`)
}

func (r *FiscalProfileRepo) DeactivateAll(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, `UPDATE fiscal_profiles SET active = false, updated_at = now() WHERE active = true`); err != nil {
		return fmt.Errorf("deactivate fiscal_profiles: %w", err)
	}
	return nil
}

// AdvanceLastNumber nunca retrocede la numeración. Actualiza también los perfiles
// reemplazados del mismo CNPJ y serie.
func (r *FiscalProfileRepo) AdvanceLastNumber(ctx context.Context, cnpj string, series int, n int64) error {
	const q = `
		UPDATE fiscal_profiles
		SET last_number = GREATEST(last_number, $3),
		    updated_at  = now()
		WHERE cnpj = $1 AND series = $2`
	tag, err := r.q.Exec(ctx, q, cnpj, series, n)
	if err != nil {
		return fmt.Errorf("advance last_number: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("advance last_number: sin perfil para CNPJ %s serie %d", cnpj, series)
	}
	return nil
}

func (r *FiscalProfileRepo) MaxLastNumber(ctx context.Context, cnpj string, series int) (int64, error) {
	const q = `
		SELECT COALESCE(MAX(last_number), 0)
		FROM fiscal_profiles
		WHERE cnpj = $1 AND series = $2`
	var n int64
	if err := r.q.QueryRow(ctx, q, cnpj, series).Scan(&n); err != nil {
		return 0, fmt.Errorf("max last_number: %w", err)
	}
	return n, nil
}

func (r *FiscalProfileRepo) getOne(ctx context.Context, query string, args ...any) (*entity.FiscalProfile, error) {
	p, err := scanProfile(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal_profile: %w", err)
	}
	return p, nil
}

func scanProfile(row pgxScanner) (*entity.FiscalProfile, error) {
	var p entity.FiscalProfile
	err := row.Scan(
		&p.ID, &p.CNPJ, &p.IE, &p.IM, &p.LegalName, &p.TradeName,
		&p.Street, &p.Number, &p.Complement, &p.District, &p.CityCode, &p.CityName, &p.UF, &p.CEP, &p.Phone,
		&p.CRT, &p.Series, &p.LastNumber, &p.Environment, &p.ContingencyMode,
		&p.CertificateType, &p.CertificateA1, &p.CertificatePassword, &p.CertificatePin, &p.PKCS11Library,
		&p.CSCID, &p.CSCToken, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
