package signature

import (
	"crypto/ed25519"
	"evcp/utility"
)

type ed25519Signer struct {
	private ed25519.PrivateKey
	peer    ed25519.PublicKey
}

// NewEd25519 returns a policy signing with privateKey and verifying against peerPublicKey.
// Both keys are base64 encoded; the private key may be given as a 32 byte seed.
func NewEd25519(privateKey, peerPublicKey string, options Options) (Policy, error) {
	signer := &ed25519Signer{}
	if privateKey != "" {
		raw, err := decode(privateKey)
		if err != nil {
			return nil, utility.Errf("decoding private key: %s", err)
		}
		switch len(raw) {
		case ed25519.SeedSize:
			signer.private = ed25519.NewKeyFromSeed(raw)
		case ed25519.PrivateKeySize:
			signer.private = raw
		default:
			return nil, utility.Errf("invalid private key size %d", len(raw))
		}
	}
	if peerPublicKey != "" {
		raw, err := decode(peerPublicKey)
		if err != nil {
			return nil, utility.Errf("decoding peer public key: %s", err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, utility.Errf("invalid public key size %d", len(raw))
		}
		signer.peer = raw
	}
	return &keyPolicy{name: "ed25519", options: options, signer: signer}, nil
}

func (s *ed25519Signer) algorithm() string {
	return AlgorithmEd25519
}

func (s *ed25519Signer) sign(data []byte) ([]byte, error) {
	if s.private == nil {
		return nil, utility.Err("no private key configured")
	}
	return ed25519.Sign(s.private, data), nil
}

func (s *ed25519Signer) verify(data, signature []byte) bool {
	if s.peer == nil {
		return false
	}
	return ed25519.Verify(s.peer, data, signature)
}
