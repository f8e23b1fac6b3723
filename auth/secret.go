package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// UserKey holds one user's PBKDF2-derived secret and the salting parameters
// it was derived with.
type UserKey struct {
	// Key is the base64-encoded PBKDF2-derived key.
	Key string `json:"key" mapstructure:"key"`
	// Salt used when deriving the key.
	Salt string `json:"salt" mapstructure:"salt"`
	// Iterations of the pbkdf2 algorithm.
	Iterations int `json:"iterations" mapstructure:"iterations"`
	// KeyLen of the derived key, in bytes.
	KeyLen int `json:"keylen" mapstructure:"keylen"`
}

// SecretAuth authenticates clients against a table of PBKDF2-derived shared
// secrets.  The client presents "username" and "password" in its
// authentication request; the password is salted and derived with the
// stored parameters and compared in constant time.
type SecretAuth struct {
	users map[string]UserKey
}

// NewSecretAuth creates a SecretAuth from the username -> key table.
func NewSecretAuth(users map[string]UserKey) *SecretAuth {
	return &SecretAuth{users: users}
}

// Authenticate checks the presented password against the stored derived key.
func (a *SecretAuth) Authenticate(authData map[string]interface{}) (string, error) {
	username, _ := authData["username"].(string)
	password, _ := authData["password"].(string)
	if username == "" {
		return "", errors.New("no username supplied")
	}

	uk, ok := a.users[username]
	if !ok {
		return "", errors.New("no such user: " + username)
	}
	want, err := base64.StdEncoding.DecodeString(uk.Key)
	if err != nil {
		return "", fmt.Errorf("bad stored key for user %s: %s", username, err)
	}

	got := pbkdf2.Key([]byte(password), []byte(uk.Salt), uk.Iterations,
		uk.KeyLen, sha256.New)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return "", errors.New("invalid password for user: " + username)
	}
	return username, nil
}

// AuthMethod returns the authentication method name.
func (a *SecretAuth) AuthMethod() string { return "secret" }

// DeriveKey computes the base64-encoded PBKDF2-derived key for a password
// and salting parameters.  It is the counterpart of Authenticate, used when
// provisioning the user table.
func DeriveKey(password, salt string, iterations, keyLen int) string {
	dk := pbkdf2.Key([]byte(password), []byte(salt), iterations, keyLen,
		sha256.New)
	return base64.StdEncoding.EncodeToString(dk)
}
