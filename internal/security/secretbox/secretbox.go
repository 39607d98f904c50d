package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	EnvVar            = "SECRETBOX_MASTER_KEY"
	nonceSizeGCM      = 12  // AES-GCM nonce size recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

// ErrIntegrity: el ciphertext fue alterado, el envelope es inválido o la
// clave no es la correcta. Nunca incluye el plaintext.
var ErrIntegrity = errors.New("secretbox: integrity check failed")

// ConfigError indica una master key ausente o malformada. Es fatal al arrancar.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "secretbox: " + e.Reason + "; genere una clave con: clinicauth keygen"
}

// Vault cifra y descifra secretos de clientes con AES-256-GCM.
// Es inmutable y seguro para uso concurrente.
type Vault struct {
	aead cipher.AEAD
}

// NewVault construye el vault con una clave cruda de 32 bytes.
func NewVault(key []byte) (*Vault, error) {
	if len(key) != requiredKeyLength {
		return nil, &ConfigError{Reason: fmt.Sprintf("la clave debe tener %d bytes, tiene %d", requiredKeyLength, len(key))}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSizeGCM)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// LoadVault parsea la master key (base64 std/raw o hex) y construye el vault.
func LoadVault(raw string) (*Vault, error) {
	k, err := ParseKey(raw)
	if err != nil {
		return nil, err
	}
	return NewVault(k)
}

// ParseKey decodifica una clave de 32 bytes en base64 (std o sin padding) o hex.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &ConfigError{Reason: EnvVar + " no seteada"}
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(raw); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if len(raw) == 2*requiredKeyLength {
		if h, err := hex.DecodeString(raw); err == nil {
			return h, nil
		}
	}
	return nil, &ConfigError{Reason: fmt.Sprintf("%s debe decodificar a %d bytes (base64 o hex)", EnvVar, requiredKeyLength)}
}

// GenerateKey retorna una clave nueva en base64 std, lista para el env.
func GenerateKey() (string, error) {
	k := make([]byte, requiredKeyLength)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return "", fmt.Errorf("key random: %w", err)
	}
	return base64.StdEncoding.EncodeToString(k), nil
}

// DeriveKey deriva una sub-clave independiente (HKDF-SHA256) para otro uso,
// p.ej. la firma de sesiones. purpose distingue las sub-claves.
func DeriveKey(master []byte, purpose string, n int) ([]byte, error) {
	out := make([]byte, n)
	r := hkdf.New(sha256.New, master, nil, []byte("clinicauth/"+purpose))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return out, nil
}

// Encrypt cifra plainText y devuelve base64(nonce)|base64(ciphertext).
func (v *Vault) Encrypt(plainText string) (string, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := v.aead.Seal(nil, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt recibe base64(nonce)|base64(ciphertext) y devuelve el texto plano.
// Cualquier falla envuelve ErrIntegrity.
func (v *Vault) Decrypt(cipherText string) (string, error) {
	nonceB64, ctB64, ok := strings.Cut(cipherText, sep)
	if !ok || strings.Contains(ctB64, sep) {
		return "", fmt.Errorf("%w: formato inválido", ErrIntegrity)
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil || len(nonce) != nonceSizeGCM {
		return "", fmt.Errorf("%w: nonce inválido", ErrIntegrity)
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext inválido", ErrIntegrity)
	}
	pt, err := v.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: gcm open", ErrIntegrity)
	}
	return string(pt), nil
}
