package core

import (
	"evcp/ocpp"
	"evcp/types"
)

const AuthorizeFeatureName = "Authorize"

type AuthorizeRequest struct {
	ocpp.Signed
	IdTag string `json:"idTag"`
}

type AuthorizeResponse struct {
	ocpp.Signed
	IdTagInfo *types.IdTagInfo `json:"idTagInfo"`
}

func (r *AuthorizeRequest) GetFeatureName() string {
	return AuthorizeFeatureName
}

func (r *AuthorizeResponse) GetFeatureName() string {
	return AuthorizeFeatureName
}

func NewAuthorizationRequest(idTag string) *AuthorizeRequest {
	return &AuthorizeRequest{IdTag: idTag}
}

func NewAuthorizationResponse(idTagInfo *types.IdTagInfo) *AuthorizeResponse {
	return &AuthorizeResponse{IdTagInfo: idTagInfo}
}
