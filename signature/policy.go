package signature

import (
	"evcp/types"
	"evcp/utility"
)

// Policy signs outbound and verifies inbound messages. The canonical argument
// is the JSON encoding of the message without its signatures.
type Policy interface {
	Name() string
	SignRequest(feature string, canonical []byte) ([]types.Signature, error)
	SignResponse(feature string, canonical []byte) ([]types.Signature, error)
	VerifyRequest(feature string, canonical []byte, signatures []types.Signature) error
	VerifyResponse(feature string, canonical []byte, signatures []types.Signature) error
}

var (
	ErrMissingSignature = utility.Err("message carries no signature")
	ErrInvalidSignature = utility.Err("signature does not match message")
)

// Set holds the configured policies of a node; the first one is active
type Set struct {
	policies []Policy
}

func NewSet(policies ...Policy) *Set {
	return &Set{policies: policies}
}

// Active returns the first configured policy, NoSignature when none is configured
func (s *Set) Active() Policy {
	if s == nil || len(s.policies) == 0 {
		return NoSignature{}
	}
	return s.policies[0]
}

func (s *Set) Add(policy Policy) {
	s.policies = append(s.policies, policy)
}

// NoSignature attaches nothing and accepts everything
type NoSignature struct{}

func (NoSignature) Name() string {
	return "none"
}

func (NoSignature) SignRequest(string, []byte) ([]types.Signature, error) {
	return nil, nil
}

func (NoSignature) SignResponse(string, []byte) ([]types.Signature, error) {
	return nil, nil
}

func (NoSignature) VerifyRequest(string, []byte, []types.Signature) error {
	return nil
}

func (NoSignature) VerifyResponse(string, []byte, []types.Signature) error {
	return nil
}

// Options control which directions a key based policy checks
type Options struct {
	KeyId             string
	VerifyRequests    bool
	VerifyResponses   bool
	RequireSignatures bool
}

type signer interface {
	algorithm() string
	sign(data []byte) ([]byte, error)
	verify(data, signature []byte) bool
}

// keyPolicy implements Policy over a single signer
type keyPolicy struct {
	name    string
	options Options
	signer  signer
}

func (p *keyPolicy) Name() string {
	return p.name
}

func (p *keyPolicy) SignRequest(feature string, canonical []byte) ([]types.Signature, error) {
	return p.signMessage(canonical)
}

func (p *keyPolicy) SignResponse(feature string, canonical []byte) ([]types.Signature, error) {
	return p.signMessage(canonical)
}

func (p *keyPolicy) VerifyRequest(feature string, canonical []byte, signatures []types.Signature) error {
	if !p.options.VerifyRequests {
		return nil
	}
	return p.verifyMessage(canonical, signatures)
}

func (p *keyPolicy) VerifyResponse(feature string, canonical []byte, signatures []types.Signature) error {
	if !p.options.VerifyResponses {
		return nil
	}
	return p.verifyMessage(canonical, signatures)
}

func (p *keyPolicy) signMessage(canonical []byte) ([]types.Signature, error) {
	value, err := p.signer.sign(canonical)
	if err != nil {
		return nil, err
	}
	return []types.Signature{{
		KeyId:     p.options.KeyId,
		Algorithm: p.signer.algorithm(),
		Value:     encode(value),
	}}, nil
}

// verifyMessage accepts the message when any signature made with our key id and algorithm matches
func (p *keyPolicy) verifyMessage(canonical []byte, signatures []types.Signature) error {
	checked := 0
	for _, s := range signatures {
		if s.Algorithm != p.signer.algorithm() {
			continue
		}
		if p.options.KeyId != "" && s.KeyId != "" && s.KeyId != p.options.KeyId {
			continue
		}
		checked++
		value, err := decode(s.Value)
		if err != nil {
			continue
		}
		if p.signer.verify(canonical, value) {
			return nil
		}
	}
	if checked == 0 {
		if p.options.RequireSignatures {
			return ErrMissingSignature
		}
		return nil
	}
	return ErrInvalidSignature
}
