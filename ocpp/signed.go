package ocpp

import (
	"encoding/json"
	"evcp/types"
)

// Signable messages carry a set of signatures next to their payload fields
type Signable interface {
	GetSignatures() []types.Signature
	SetSignatures(signatures []types.Signature)
}

// Signed is embedded into every request and response type
type Signed struct {
	Signatures []types.Signature `json:"signatures,omitempty"`
}

func (s *Signed) GetSignatures() []types.Signature {
	return s.Signatures
}

func (s *Signed) SetSignatures(signatures []types.Signature) {
	s.Signatures = signatures
}

// Canonical returns the JSON encoding of a message with its signatures left out;
// this is the form signatures are computed over
func Canonical(message interface{}) ([]byte, error) {
	signable, ok := message.(Signable)
	if !ok {
		return json.Marshal(message)
	}
	signatures := signable.GetSignatures()
	signable.SetSignatures(nil)
	defer signable.SetSignatures(signatures)
	return json.Marshal(message)
}
