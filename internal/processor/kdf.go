package processor

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Key derivation algorithms
const (
	AlgorithmArgon2id     = "argon2id"
	AlgorithmPBKDF2SHA256 = "pbkdf2-sha256"
)

// Key derivation defaults. The argon2id parameters follow the RFC 9106
// second recommended option.
const (
	DefaultKeyLength        = 32
	DefaultPBKDF2Iterations = 600_000

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

type deriveKeyRequest struct {
	Password   string `json:"password"   validate:"required"`
	Salt       string `json:"salt"       validate:"required,min=8"`
	Algorithm  string `json:"algorithm"`
	KeyLength  int    `json:"keyLength"  validate:"omitempty,gte=16,lte=64"`
	Iterations int    `json:"iterations" validate:"omitempty,gte=1000,lte=10000000"`
}

// DerivedKey is returned by the derive_key task. Key is base64 encoded.
type DerivedKey struct {
	Algorithm string `json:"algorithm"`
	Key       string `json:"key"`
}

func handleDeriveKey(_ context.Context, payload json.RawMessage) (any, error) {
	var req deriveKeyRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.Algorithm == "" {
		req.Algorithm = AlgorithmArgon2id
	}
	if req.KeyLength == 0 {
		req.KeyLength = DefaultKeyLength
	}

	var key []byte
	switch req.Algorithm {
	case AlgorithmArgon2id:
		key = argon2.IDKey([]byte(req.Password), []byte(req.Salt), argon2Time, argon2Memory, argon2Threads, uint32(req.KeyLength))
	case AlgorithmPBKDF2SHA256:
		iterations := req.Iterations
		if iterations == 0 {
			iterations = DefaultPBKDF2Iterations
		}
		key = pbkdf2.Key([]byte(req.Password), []byte(req.Salt), iterations, req.KeyLength, sha256.New)
	default:
		return nil, unsupported("key derivation", req.Algorithm)
	}

	return DerivedKey{
		Algorithm: req.Algorithm,
		Key:       base64.StdEncoding.EncodeToString(key),
	}, nil
}

type passwordVerifyRequest struct {
	Password string `json:"password" validate:"required"`
	Hash     string `json:"hash"     validate:"required"`
}

// PasswordMatch is returned by the password_verify task
type PasswordMatch struct {
	Match bool `json:"match"`
}

func handlePasswordVerify(_ context.Context, payload json.RawMessage) (any, error) {
	var req passwordVerifyRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	err := bcrypt.CompareHashAndPassword([]byte(req.Hash), []byte(req.Password))
	switch {
	case err == nil:
		return PasswordMatch{Match: true}, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return PasswordMatch{Match: false}, nil
	default:
		return nil, fmt.Errorf("%w: hash is not a valid bcrypt hash", ErrInvalidPayload)
	}
}
