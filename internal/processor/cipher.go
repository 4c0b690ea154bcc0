package processor

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEAD algorithms
const (
	AlgorithmAES256GCM        = "aes-256-gcm"
	AlgorithmChaCha20Poly1305 = "chacha20-poly1305"
)

// KeySize is the key length in bytes accepted by every AEAD algorithm
const KeySize = 32

type encryptRequest struct {
	Plaintext      string `json:"plaintext"`
	Key            string `json:"key"            validate:"required,base64"`
	Nonce          string `json:"nonce"          validate:"omitempty,base64"`
	AssociatedData string `json:"associatedData"`
	Algorithm      string `json:"algorithm"`
}

// EncryptResult is returned by the encrypt task. Fields are base64 encoded.
type EncryptResult struct {
	Algorithm  string `json:"algorithm"`
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

type decryptRequest struct {
	Ciphertext     string `json:"ciphertext"     validate:"required,base64"`
	Key            string `json:"key"            validate:"required,base64"`
	Nonce          string `json:"nonce"          validate:"required,base64"`
	AssociatedData string `json:"associatedData"`
	Algorithm      string `json:"algorithm"`
}

// DecryptResult is returned by the decrypt task
type DecryptResult struct {
	Plaintext string `json:"plaintext"`
}

func handleEncrypt(_ context.Context, payload json.RawMessage) (any, error) {
	var req encryptRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.Algorithm == "" {
		req.Algorithm = AlgorithmAES256GCM
	}

	key, err := decodeKey(req.Key)
	if err != nil {
		return nil, err
	}
	aead, err := newAEAD(req.Algorithm, key)
	if err != nil {
		return nil, err
	}

	plaintext := []byte(req.Plaintext)
	var nonce []byte
	if req.Nonce != "" {
		nonce, _ = base64.StdEncoding.DecodeString(req.Nonce)
		if len(nonce) != aead.NonceSize() {
			return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrInvalidPayload, aead.NonceSize())
		}
	} else {
		nonce = syntheticNonce(key, []byte(req.AssociatedData), plaintext, aead.NonceSize())
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, []byte(req.AssociatedData))

	return EncryptResult{
		Algorithm:  req.Algorithm,
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
	}, nil
}

func handleDecrypt(_ context.Context, payload json.RawMessage) (any, error) {
	var req decryptRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.Algorithm == "" {
		req.Algorithm = AlgorithmAES256GCM
	}

	key, err := decodeKey(req.Key)
	if err != nil {
		return nil, err
	}
	aead, err := newAEAD(req.Algorithm, key)
	if err != nil {
		return nil, err
	}

	// Fields were validated as base64 above.
	nonce, _ := base64.StdEncoding.DecodeString(req.Nonce)
	ciphertext, _ := base64.StdEncoding.DecodeString(req.Ciphertext)
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrInvalidPayload, aead.NonceSize())
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(req.AssociatedData))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return DecryptResult{Plaintext: string(plaintext)}, nil
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, base64 encoded", ErrInvalidPayload, KeySize)
	}
	return key, nil
}

func newAEAD(algorithm string, key []byte) (cipher.AEAD, error) {
	switch algorithm {
	case AlgorithmAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return cipher.NewGCM(block)
	case AlgorithmChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return aead, nil
	default:
		return nil, unsupported("cipher", algorithm)
	}
}

// syntheticNonce derives a nonce from the key, associated data and
// plaintext, so identical inputs always produce identical ciphertext.
// Distinct plaintexts under one key get distinct nonces.
func syntheticNonce(key, associatedData, plaintext []byte, size int) []byte {
	var adLen [8]byte
	binary.BigEndian.PutUint64(adLen[:], uint64(len(associatedData)))

	mac := hmac.New(sha256.New, key)
	mac.Write(adLen[:])
	mac.Write(associatedData)
	mac.Write(plaintext)
	return mac.Sum(nil)[:size]
}
