package auth

import "golang.org/x/crypto/bcrypt"

// CredentialVerifier checks a plaintext credential against a stored hash.
// The core never touches hashing beyond this capability.
type CredentialVerifier interface {
	Verify(plaintext, hash string) bool
}

type BcryptVerifier struct{}

func (BcryptVerifier) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// HashPassword produces a stored credential hash for a new or changed password.
func HashPassword(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
