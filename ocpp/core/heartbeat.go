package core

import (
	"evcp/ocpp"
	"evcp/types"
)

const HeartbeatFeatureName = "Heartbeat"

type HeartbeatRequest struct {
	ocpp.Signed
}

type HeartbeatResponse struct {
	ocpp.Signed
	CurrentTime *types.DateTime `json:"currentTime"`
}

func (req *HeartbeatRequest) GetFeatureName() string {
	return HeartbeatFeatureName
}

func (res *HeartbeatResponse) GetFeatureName() string {
	return HeartbeatFeatureName
}

func NewHeartbeatRequest() *HeartbeatRequest {
	return &HeartbeatRequest{}
}

func NewHeartbeatResponse(currentTime *types.DateTime) *HeartbeatResponse {
	return &HeartbeatResponse{CurrentTime: currentTime}
}
