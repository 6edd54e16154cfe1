package library

import "golang.org/x/crypto/bcrypt"

// CredentialVerifier checks a presented password against the stored
// credential. The stored value is opaque to the service: what it contains
// depends on which verifier produced it.
type CredentialVerifier interface {
	Hash(password string) (string, error)
	Verify(stored, presented string) bool
}

// PlainVerifier stores and compares passwords verbatim. This mirrors the
// historical behavior and is the default; swap in BcryptVerifier where the
// deployment calls for hashed credentials.
type PlainVerifier struct{}

func (PlainVerifier) Hash(password string) (string, error) { return password, nil }

func (PlainVerifier) Verify(stored, presented string) bool { return stored == presented }

// BcryptVerifier stores bcrypt hashes.
type BcryptVerifier struct{}

func (BcryptVerifier) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (BcryptVerifier) Verify(stored, presented string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented)) == nil
}
