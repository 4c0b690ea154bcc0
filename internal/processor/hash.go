package processor

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// Hash algorithms and digest encodings
const (
	AlgorithmSHA256     = "sha256"
	AlgorithmSHA512     = "sha512"
	AlgorithmBLAKE2b256 = "blake2b-256"
	AlgorithmBLAKE2b512 = "blake2b-512"

	EncodingHex    = "hex"
	EncodingBase64 = "base64"
)

type hashRequest struct {
	Data      string `json:"data"`
	Algorithm string `json:"algorithm"`
	Encoding  string `json:"encoding" validate:"omitempty,oneof=hex base64"`
}

// HashResult is returned by the hash task
type HashResult struct {
	Algorithm string `json:"algorithm"`
	Encoding  string `json:"encoding"`
	Digest    string `json:"digest"`
}

func handleHash(_ context.Context, payload json.RawMessage) (any, error) {
	var req hashRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.Algorithm == "" {
		req.Algorithm = AlgorithmSHA256
	}
	if req.Encoding == "" {
		req.Encoding = EncodingHex
	}

	sum, err := digest(req.Algorithm, []byte(req.Data))
	if err != nil {
		return nil, err
	}

	result := HashResult{Algorithm: req.Algorithm, Encoding: req.Encoding}
	if req.Encoding == EncodingBase64 {
		result.Digest = base64.StdEncoding.EncodeToString(sum)
	} else {
		result.Digest = hex.EncodeToString(sum)
	}
	return result, nil
}

func digest(algorithm string, data []byte) ([]byte, error) {
	switch algorithm {
	case AlgorithmSHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case AlgorithmSHA512:
		sum := sha512.Sum512(data)
		return sum[:], nil
	case AlgorithmBLAKE2b256:
		sum := blake2b.Sum256(data)
		return sum[:], nil
	case AlgorithmBLAKE2b512:
		sum := blake2b.Sum512(data)
		return sum[:], nil
	default:
		return nil, unsupported("hash", algorithm)
	}
}
