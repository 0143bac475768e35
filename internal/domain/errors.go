package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound               = errors.New("recurso no encontrado")
	ErrInvalidInput           = errors.New("entrada inválida")
	ErrDuplicate              = errors.New("recurso duplicado")
	ErrUnauthorized           = errors.New("no autorizado")
	ErrForbidden              = errors.New("acceso denegado")
	ErrConflict               = errors.New("conflicto con el estado actual")
	ErrAlreadyEmitted         = errors.New("Já existe NFC-e emitida para esta venda")
	ErrNoActiveProfile        = errors.New("Configuração fiscal não encontrada. Configure primeiro.")
	ErrInvalidCertificateType = errors.New("Tipo de certificado inválido")
	ErrNotImplemented         = errors.New("no implementado")
)
