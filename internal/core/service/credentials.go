package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/yndnr/tokgate/pkg/token"
)

// CredentialChecker verifies a username/password pair.
type CredentialChecker interface {
	Check(username, password string) bool
}

// CredentialCheckerFunc adapts a function to CredentialChecker.
type CredentialCheckerFunc func(username, password string) bool

// Check implements CredentialChecker.
func (f CredentialCheckerFunc) Check(username, password string) bool {
	return f(username, password)
}

// StaticCredentials accepts exactly one administrator account whose password
// is stored as a Base64 SHA-256 hash.
type StaticCredentials struct {
	Username     string
	PasswordHash string
}

// Check implements CredentialChecker. Both the username and the password
// must match; both comparisons always run.
func (c StaticCredentials) Check(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	passOK := token.VerifyPassword(password, c.PasswordHash)
	return userOK && passOK && c.Username != ""
}

// Argon2 parameters used by HashArgon2id.
const (
	argon2Time    = 2
	argon2Memory  = 16 * 1024
	argon2Threads = 2
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// Argon2Credentials accepts one administrator account whose password is
// stored in PHC format: $argon2id$v=19$m=<KiB>,t=<iterations>,p=<threads>$<salt>$<hash>.
type Argon2Credentials struct {
	Username     string
	PasswordHash string
}

// Check implements CredentialChecker.
func (c Argon2Credentials) Check(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	passOK := verifyArgon2id(password, c.PasswordHash)
	return userOK && passOK && c.Username != ""
}

// HashArgon2id hashes password into the PHC string accepted by Argon2Credentials.
func HashArgon2id(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func verifyArgon2id(password, encoded string) bool {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}
	if memory == 0 || iterations == 0 || threads == 0 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
