package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"evcp/utility"
)

const (
	AlgorithmHmacSha256 = "HMAC-SHA256"
	AlgorithmEd25519    = "Ed25519"
)

type hmacSigner struct {
	secret []byte
}

// NewHMAC returns a policy signing with a shared secret
func NewHMAC(secret string, options Options) (Policy, error) {
	if secret == "" {
		return nil, utility.Err("hmac policy requires a secret")
	}
	return &keyPolicy{
		name:    "hmac",
		options: options,
		signer:  &hmacSigner{secret: []byte(secret)},
	}, nil
}

func (s *hmacSigner) algorithm() string {
	return AlgorithmHmacSha256
}

func (s *hmacSigner) sign(data []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(data)
	return mac.Sum(nil), nil
}

func (s *hmacSigner) verify(data, signature []byte) bool {
	expected, _ := s.sign(data)
	return hmac.Equal(expected, signature)
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
