// Package tokens genera los secretos opacos del servicio (authorization
// codes, access y refresh tokens, secretos de client generados) y el hash con
// el que se persisten. El valor en claro nunca se guarda.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// DefaultBytes es la entropía de codes y tokens: 256 bits.
const DefaultBytes = 32

// minBytes evita tokens adivinables por error de configuración.
const minBytes = 16

var enc = base64.RawURLEncoding

// Generate retorna n bytes de crypto/rand en base64url sin padding, apto
// para query strings y forms sin escapar.
func Generate(n int) (string, error) {
	if n < minBytes {
		return "", fmt.Errorf("tokens: %d bytes is below the %d byte minimum", n, minBytes)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("tokens: read random: %w", err)
	}
	return enc.EncodeToString(b), nil
}

// Hash es la clave de búsqueda persistida: sha256 en base64url. Los tokens
// ya tienen 256 bits de entropía, no hace falta sal ni KDF lento.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return enc.EncodeToString(sum[:])
}

// Equal compara en tiempo constante. Longitudes distintas retornan false.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
