package core

import "evcp/ocpp"

const ClearCacheFeatureName = "ClearCache"

type ClearCacheStatus string

const (
	ClearCacheStatusAccepted ClearCacheStatus = "Accepted"
	ClearCacheStatusRejected ClearCacheStatus = "Rejected"
)

type ClearCacheRequest struct {
	ocpp.Signed
}

type ClearCacheResponse struct {
	ocpp.Signed
	Status ClearCacheStatus `json:"status"`
}

func (r *ClearCacheRequest) GetFeatureName() string {
	return ClearCacheFeatureName
}

func (r *ClearCacheResponse) GetFeatureName() string {
	return ClearCacheFeatureName
}

func NewClearCacheResponse(status ClearCacheStatus) *ClearCacheResponse {
	return &ClearCacheResponse{Status: status}
}
