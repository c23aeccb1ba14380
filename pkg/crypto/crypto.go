package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// PasswordParams are the argon2id cost factors applied to new password hashes.
var PasswordParams = argon2id.DefaultParams

// HashPassword returns an argon2id hash (PHC string) of the supplied password.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, PasswordParams)
}

// VerifyPassword compares the stored hash with the plaintext candidate. Hashes
// imported from the previous platform are bcrypt and are still accepted.
func VerifyPassword(hashedPassword, password string) bool {
	if hashedPassword == "" {
		return false
	}
	if strings.HasPrefix(hashedPassword, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
	}
	match, err := argon2id.ComparePasswordAndHash(password, hashedPassword)
	return err == nil && match
}

// NeedsRehash reports whether a stored hash predates the argon2id scheme.
func NeedsRehash(hashedPassword string) bool {
	return !strings.HasPrefix(hashedPassword, "$argon2id$")
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// GenerateNumericCode returns a uniformly distributed decimal code with exactly
// digits characters, leading zeros included.
func GenerateNumericCode(digits int) (string, error) {
	return numericCode(rand.Reader, digits)
}

func numericCode(src io.Reader, digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", errors.New("crypto: code length must be between 1 and 18")
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(src, max)
	if err != nil {
		return "", err
	}
	code := n.String()
	if pad := digits - len(code); pad > 0 {
		code = strings.Repeat("0", pad) + code
	}
	return code, nil
}

// HashToken returns the hex encoded SHA-256 digest of the joined parts.
func HashToken(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

// EqualHashes compares two digests in constant time.
func EqualHashes(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
