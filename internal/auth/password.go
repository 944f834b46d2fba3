package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonMemoryKibibytesConstant   = 64 * 1024
	argonIterationsConstant        = 1
	argonParallelismConstant       = 4
	argonSaltBytesConstant         = 16
	argonKeyBytesConstant          = 32
	argonEncodingTemplateConstant  = "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"
	argonParameterTemplateConstant = "m=%d,t=%d,p=%d"
	argonVersionTemplateConstant   = "v=%d"
	argonAlgorithmNameConstant     = "argon2id"
	argonSegmentCountConstant      = 6
	argonSegmentSeparatorConstant  = "$"
	emptyPasswordMessageConstant   = "password must not be empty"
	malformedHashMessageConstant   = "malformed password hash"
)

// ErrMalformedPasswordHash indicates a stored hash that cannot be decoded.
var ErrMalformedPasswordHash = errors.New(malformedHashMessageConstant)

// HashPassword derives an encoded argon2id hash with a random salt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New(emptyPasswordMessageConstant)
	}
	salt := make([]byte, argonSaltBytesConstant)
	if _, readError := rand.Read(salt); readError != nil {
		return "", readError
	}
	key := argon2.IDKey([]byte(password), salt, argonIterationsConstant, argonMemoryKibibytesConstant, argonParallelismConstant, argonKeyBytesConstant)
	return fmt.Sprintf(
		argonEncodingTemplateConstant,
		argon2.Version, argonMemoryKibibytesConstant, argonIterationsConstant, argonParallelismConstant,
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether password matches the encoded argon2id hash.
func VerifyPassword(encodedHash string, password string) (bool, error) {
	segments := strings.Split(encodedHash, argonSegmentSeparatorConstant)
	if len(segments) != argonSegmentCountConstant || segments[1] != argonAlgorithmNameConstant {
		return false, ErrMalformedPasswordHash
	}
	var version int
	if _, scanError := fmt.Sscanf(segments[2], argonVersionTemplateConstant, &version); scanError != nil || version != argon2.Version {
		return false, ErrMalformedPasswordHash
	}
	var memory, iterations uint32
	var parallelism uint8
	if _, scanError := fmt.Sscanf(segments[3], argonParameterTemplateConstant, &memory, &iterations, &parallelism); scanError != nil {
		return false, ErrMalformedPasswordHash
	}
	salt, saltError := base64.RawStdEncoding.DecodeString(segments[4])
	if saltError != nil {
		return false, ErrMalformedPasswordHash
	}
	expectedKey, keyError := base64.RawStdEncoding.DecodeString(segments[5])
	if keyError != nil || len(expectedKey) == 0 {
		return false, ErrMalformedPasswordHash
	}
	candidateKey := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedKey)))
	return subtle.ConstantTimeCompare(candidateKey, expectedKey) == 1, nil
}
