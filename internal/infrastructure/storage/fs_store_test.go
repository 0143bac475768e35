package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfce-emissor/internal/domain"
	"github.com/jhoicas/nfce-emissor/internal/infrastructure/storage"
)

const key = "35240111222333000181650010000001231123456783"

func TestFSStore_GuardaParticionadoPorAnoMes(t *testing.T) {
	root := t.TempDir()
	s := storage.NewFSStore(root)
	at := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)

	path, err := s.SavePDF(context.Background(), key, at, []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "2024", "01", key+".pdf"), path)

	data, err := s.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no deben quedar temporales")
}

func TestFSStore_MesEnHorarioDeBrasilia(t *testing.T) {
	s := storage.NewFSStore("/data")
	// 01/02 01:00 UTC es todavía 31/01 en São Paulo
	at := time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("/data", "2024", "01", key+".xml"), s.PathFor(key, at, storage.ExtXML))
}

func TestFSStore_Sobrescribe(t *testing.T) {
	s := storage.NewFSStore(t.TempDir())
	at := time.Now()
	_, err := s.SaveXML(context.Background(), key, at, []byte("<a/>"))
	require.NoError(t, err)
	path, err := s.SaveXML(context.Background(), key, at, []byte("<b/>"))
	require.NoError(t, err)

	data, err := s.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "<b/>", string(data))
}

func TestFSStore_Errores(t *testing.T) {
	root := t.TempDir()
	s := storage.NewFSStore(root)

	_, err := s.SaveXML(context.Background(), "../../etc/passwd", time.Now(), []byte("x"))
	assert.Error(t, err)

	_, err = s.Read(context.Background(), filepath.Join(root, "2024", "01", "nada.pdf"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Read(context.Background(), "/etc/hostname")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SavePDF(ctx, key, time.Now(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
