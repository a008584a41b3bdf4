package core

import (
	"evcp/ocpp"
	"evcp/utility"
)

const DataTransferFeatureName = "DataTransfer"

type DataTransferStatus string

const (
	DataTransferStatusAccepted         DataTransferStatus = "Accepted"
	DataTransferStatusRejected         DataTransferStatus = "Rejected"
	DataTransferStatusUnknownMessageId DataTransferStatus = "UnknownMessageId"
	DataTransferStatusUnknownVendorId  DataTransferStatus = "UnknownVendorId"
)

type DataTransferRequest struct {
	ocpp.Signed
	VendorId  string      `json:"vendorId"`
	MessageId string      `json:"messageId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

type DataTransferResponse struct {
	ocpp.Signed
	Status DataTransferStatus `json:"status"`
	Data   interface{}        `json:"data,omitempty"`
}

func (r *DataTransferRequest) GetFeatureName() string {
	return DataTransferFeatureName
}

func (r *DataTransferRequest) Validate() error {
	if r.VendorId == "" {
		return utility.Err("vendorId is required")
	}
	return nil
}

func (c *DataTransferResponse) GetFeatureName() string {
	return DataTransferFeatureName
}

func NewDataTransferRequest(vendorId string) *DataTransferRequest {
	return &DataTransferRequest{VendorId: vendorId}
}

func NewDataTransferResponse(status DataTransferStatus) *DataTransferResponse {
	return &DataTransferResponse{Status: status}
}
