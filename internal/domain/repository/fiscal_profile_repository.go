package repository

import (
	"context"

	"github.com/jhoicas/nfce-emissor/internal/domain/entity"
)

// FiscalProfileRepository define el puerto de persistencia del perfil fiscal del emisor.
type FiscalProfileRepository interface {
	Create(ctx context.Context, p *entity.FiscalProfile) error
	GetByID(ctx context.Context, id int64) (*entity.FiscalProfile, error)

	// GetActive devuelve el perfil activo o (nil, nil) si no hay ninguno configurado.
	GetActive(ctx context.Context) (*entity.FiscalProfile, error)

	// GetActiveForUpdate bloquea la fila del perfil activo hasta el fin de la transacción.
	// Serializa la asignación de números entre emisiones concurrentes.
	GetActiveForUpdate(ctx context.Context) (*entity.FiscalProfile, error)

	// DeactivateAll marca todos los perfiles como inactivos.
	DeactivateAll(ctx context.Context) error

	// AdvanceLastNumber avanza last_number a n solo si n es mayor (GREATEST atómico) en todos
	// los perfiles del CNPJ y la serie. La numeración pertenece a (CNPJ, serie), no a la fila.
	AdvanceLastNumber(ctx context.Context, cnpj string, series int, n int64) error

	// MaxLastNumber devuelve el mayor last_number registrado para el CNPJ y la serie (0 si no hay).
	MaxLastNumber(ctx context.Context, cnpj string, series int) (int64, error)
}
