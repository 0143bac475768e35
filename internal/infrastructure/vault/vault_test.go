package vault_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfce-emissor/internal/infrastructure/vault"
)

const testMasterKey = "0123456789abcdef0123456789abcdef"

func newVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New(testMasterKey)
	require.NoError(t, err)
	return v
}

func TestNew_ClaveCorta(t *testing.T) {
	_, err := vault.New("corta")
	assert.ErrorIs(t, err, vault.ErrMasterKeyTooShort)

	_, err = vault.New("")
	assert.ErrorIs(t, err, vault.ErrMasterKeyTooShort)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	v := newVault(t)
	for _, plain := range []string{"", "senha123", "São Paulo • 🧾 ção", "CSCTOKEN123"} {
		token, err := v.Encrypt(plain)
		require.NoError(t, err)

		got, err := v.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestEncrypt_SaltAleatorio(t *testing.T) {
	v := newVault(t)
	a, err := v.Encrypt("mismo")
	require.NoError(t, err)
	b, err := v.Encrypt("mismo")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	raw, err := base64.StdEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 64+16+16+len("mismo"))
}

func TestDecrypt_TokenAlterado(t *testing.T) {
	v := newVault(t)
	token, err := v.Encrypt("segredo")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(token)
	require.NoError(t, err)

	// Un byte alterado en salt, iv, tag o ciphertext invalida el token.
	for _, pos := range []int{0, 70, 85, len(raw) - 1} {
		mod := append([]byte(nil), raw...)
		mod[pos] ^= 0x01
		_, err := v.Decrypt(base64.StdEncoding.EncodeToString(mod))
		assert.ErrorIs(t, err, vault.ErrDecrypt, "posición %d", pos)
	}
}

func TestDecrypt_TruncadoOInvalido(t *testing.T) {
	v := newVault(t)
	_, err := v.Decrypt(base64.StdEncoding.EncodeToString(make([]byte, 50)))
	assert.ErrorIs(t, err, vault.ErrDecrypt)

	_, err = v.Decrypt("%%%no-es-base64")
	assert.ErrorIs(t, err, vault.ErrDecrypt)
}

func TestDecrypt_OtraClaveMaestra(t *testing.T) {
	v := newVault(t)
	token, err := v.Encrypt("segredo")
	require.NoError(t, err)

	other, err := vault.New("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	_, err = other.Decrypt(token)
	assert.ErrorIs(t, err, vault.ErrDecrypt)
}

func TestEncryptObject(t *testing.T) {
	type payload struct {
		Pin  string `json:"pin"`
		Slot int    `json:"slot"`
	}
	v := newVault(t)
	token, err := v.EncryptObject(payload{Pin: "1234", Slot: 2})
	require.NoError(t, err)

	var out payload
	require.NoError(t, v.DecryptObject(token, &out))
	assert.Equal(t, payload{Pin: "1234", Slot: 2}, out)
}

func TestSealReveal(t *testing.T) {
	v := newVault(t)

	sealed, err := v.Seal("CSCTOKEN123")
	require.NoError(t, err)
	assert.True(t, vault.IsSealed(sealed))

	plain, err := v.Reveal(sealed)
	require.NoError(t, err)
	assert.Equal(t, "CSCTOKEN123", plain)

	// Sin marcador se devuelve tal cual.
	plain, err = v.Reveal("texto-plano")
	require.NoError(t, err)
	assert.Equal(t, "texto-plano", plain)

	empty, err := v.Seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
