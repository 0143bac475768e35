// Package storage persiste los artefactos fiscales (nfeProc XML y DANFE PDF)
// en disco bajo <root>/YYYY/MM/<chave>.{xml,pdf}.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhoicas/nfce-emissor/internal/domain"
	"github.com/jhoicas/nfce-emissor/pkg/fiscal"
)

// Extensiones de los artefactos.
const (
	ExtXML = ".xml"
	ExtPDF = ".pdf"
)

// FSStore guarda artefactos en el sistema de archivos local.
type FSStore struct {
	root string
}

// NewFSStore crea el almacenamiento con raíz en root (se crea al primer guardado).
func NewFSStore(root string) *FSStore {
	return &FSStore{root: filepath.Clean(root)}
}

// Root devuelve el directorio raíz.
func (s *FSStore) Root() string { return s.root }

// PathFor devuelve la ruta del artefacto particionada por año/mes en horario de Brasília.
func (s *FSStore) PathFor(accessKey string, at time.Time, ext string) string {
	at = at.In(fiscal.Location())
	return filepath.Join(s.root, at.Format("2006"), at.Format("01"), accessKey+ext)
}

// SaveXML escribe el nfeProc y devuelve su ruta.
func (s *FSStore) SaveXML(ctx context.Context, accessKey string, at time.Time, data []byte) (string, error) {
	return s.save(ctx, accessKey, at, ExtXML, data)
}

// SavePDF escribe la DANFE y devuelve su ruta.
func (s *FSStore) SavePDF(ctx context.Context, accessKey string, at time.Time, data []byte) (string, error) {
	return s.save(ctx, accessKey, at, ExtPDF, data)
}

// Read lee un artefacto guardado. Rutas fuera de la raíz o inexistentes devuelven domain.ErrNotFound.
func (s *FSStore) Read(_ context.Context, path string) ([]byte, error) {
	if path == "" || !s.contains(path) {
		return nil, domain.ErrNotFound
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: leer %s: %w", path, err)
	}
	return data, nil
}

func (s *FSStore) save(ctx context.Context, accessKey string, at time.Time, ext string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !fiscal.ValidateAccessKey(accessKey) {
		return "", fmt.Errorf("storage: chave de acesso inválida %q", accessKey)
	}
	path := s.PathFor(accessKey, at, ext)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("storage: crear directorio: %w", err)
	}

	// escritura atómica: archivo temporal en el mismo directorio + rename
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+accessKey+"-*"+ext)
	if err != nil {
		return "", fmt.Errorf("storage: crear temporal: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("storage: escribir %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: cerrar %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("storage: permisos %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("storage: renombrar %s: %w", path, err)
	}
	return path, nil
}

func (s *FSStore) contains(path string) bool {
	rel, err := filepath.Rel(s.root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
