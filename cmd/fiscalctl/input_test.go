package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInput_ISO88591DeclaradoEnPrologo(t *testing.T) {
	// "São" en ISO-8859-1: 0xE3 para ã
	raw := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><xMun>S\xe3o Paulo</xMun>")

	out, err := decodeInput(raw, "")
	require.NoError(t, err)
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?><xMun>São Paulo</xMun>`, string(out))
}

func TestDecodeInput_UTF8SinCambios(t *testing.T) {
	raw := []byte(`<?xml version="1.0" encoding="UTF-8"?><xMun>São Paulo</xMun>`)

	out, err := decodeInput(raw, "")
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	out, err = decodeInput([]byte(`<xMun>Belém</xMun>`), "")
	require.NoError(t, err)
	assert.Equal(t, `<xMun>Belém</xMun>`, string(out))
}

func TestDecodeInput_CharsetExplicitoSinPrologo(t *testing.T) {
	out, err := decodeInput([]byte("<xMun>Bel\xe9m</xMun>"), "latin1")
	require.NoError(t, err)
	assert.Equal(t, "<xMun>Belém</xMun>", string(out))
}

func TestDecodeInput_CodificacionDesconocida(t *testing.T) {
	_, err := decodeInput([]byte(`<a/>`), "EBCDIC")
	assert.Error(t, err)
}
