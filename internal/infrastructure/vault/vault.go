// Package vault cifra en reposo los secretos del perfil fiscal (contraseña del A1,
// PIN del A3, token CSC) con AES-256-GCM y una clave derivada por PBKDF2-SHA512.
//
// Formato del token: base64(salt[64] ‖ iv[16] ‖ tag[16] ‖ ciphertext).
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 64
	ivLength   = 16
	tagLength  = 16
	keyLength  = 32
	iterations = 100000

	// MinMasterKeyLength es la longitud mínima del secreto maestro (ENCRYPTION_KEY).
	MinMasterKeyLength = 32

	// Prefix marca un campo persistido como cifrado.
	Prefix = "encrypted:"
)

var (
	// ErrMasterKeyTooShort se devuelve al construir el vault con un secreto débil.
	ErrMasterKeyTooShort = errors.New("vault: ENCRYPTION_KEY deve ter pelo menos 32 caracteres")
	// ErrDecrypt cubre tag inválido, token truncado o secreto maestro incorrecto.
	ErrDecrypt = errors.New("vault: falha ao descriptografar dados sensíveis")
)

// Vault cifra y descifra secretos con un secreto maestro fijo durante la vida del proceso.
type Vault struct {
	masterKey []byte
}

// New crea el vault. Falla si masterKey tiene menos de MinMasterKeyLength bytes.
func New(masterKey string) (*Vault, error) {
	if len(masterKey) < MinMasterKeyLength {
		return nil, ErrMasterKeyTooShort
	}
	return &Vault{masterKey: []byte(masterKey)}, nil
}

func (v *Vault) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(v.masterKey, salt, iterations, keyLength, sha512.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, ivLength)
}

// Encrypt cifra plaintext con salt e IV aleatorios y devuelve el token en base64.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	iv := make([]byte, ivLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("vault: salt: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("vault: iv: %w", err)
	}
	gcm, err := newGCM(v.deriveKey(salt))
	if err != nil {
		return "", fmt.Errorf("vault: cipher: %w", err)
	}

	// Seal devuelve ciphertext ‖ tag; el formato persistido lleva el tag antes.
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagLength], sealed[len(sealed)-tagLength:]

	out := make([]byte, 0, saltLength+ivLength+tagLength+len(ct))
	out = append(out, salt...)
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt descifra un token producido por Encrypt. Nunca devuelve texto parcial:
// cualquier alteración del token produce ErrDecrypt.
func (v *Vault) Decrypt(token string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(data) < saltLength+ivLength+tagLength {
		return "", ErrDecrypt
	}
	salt := data[:saltLength]
	iv := data[saltLength : saltLength+ivLength]
	tag := data[saltLength+ivLength : saltLength+ivLength+tagLength]
	ct := data[saltLength+ivLength+tagLength:]

	gcm, err := newGCM(v.deriveKey(salt))
	if err != nil {
		return "", ErrDecrypt
	}
	sealed := make([]byte, 0, len(ct)+tagLength)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// EncryptObject serializa v a JSON y lo cifra.
func (v *Vault) EncryptObject(obj any) (string, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("vault: marshal: %w", err)
	}
	return v.Encrypt(string(raw))
}

// DecryptObject descifra el token y deserializa el JSON en out.
func (v *Vault) DecryptObject(token string, out any) error {
	plain, err := v.Decrypt(token)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(plain), out); err != nil {
		return fmt.Errorf("vault: unmarshal: %w", err)
	}
	return nil
}

// Seal cifra un campo del perfil y le antepone el marcador "encrypted:".
// Un valor vacío se mantiene vacío.
func (v *Vault) Seal(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	token, err := v.Encrypt(value)
	if err != nil {
		return "", err
	}
	return Prefix + token, nil
}

// Reveal descifra un campo con marcador "encrypted:"; sin marcador lo devuelve tal cual.
func (v *Vault) Reveal(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	return v.Decrypt(strings.TrimPrefix(value, Prefix))
}

// IsSealed indica si el valor lleva el marcador de cifrado.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, Prefix)
}
