package core

import (
	"evcp/ocpp"
	"evcp/utility"
)

const ResetFeatureName = "Reset"

type ResetType string

type ResetStatus string

const (
	ResetTypeHard       ResetType   = "Hard"
	ResetTypeSoft       ResetType   = "Soft"
	ResetStatusAccepted ResetStatus = "Accepted"
	ResetStatusRejected ResetStatus = "Rejected"
)

type ResetRequest struct {
	ocpp.Signed
	Type ResetType `json:"type"`
}

type ResetResponse struct {
	ocpp.Signed
	Status ResetStatus `json:"status"`
}

func NewResetRequest(resetType ResetType) *ResetRequest {
	return &ResetRequest{Type: resetType}
}

func NewResetResponse(status ResetStatus) *ResetResponse {
	return &ResetResponse{Status: status}
}

func (r *ResetRequest) GetFeatureName() string {
	return ResetFeatureName
}

func (r *ResetRequest) Validate() error {
	if r.Type != ResetTypeHard && r.Type != ResetTypeSoft {
		return utility.Errf("invalid reset type: %s", r.Type)
	}
	return nil
}

func (r *ResetResponse) GetFeatureName() string {
	return ResetFeatureName
}
