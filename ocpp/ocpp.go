package ocpp

import (
	"encoding/json"
	"evcp/utility"
	"reflect"
)

// Request message
type Request interface {
	// GetFeatureName Returns the unique name of the feature, to which this request belongs to.
	GetFeatureName() string
}

// Response message
type Response interface {
	// GetFeatureName Returns the unique name of the feature, to which this request belongs to.
	GetFeatureName() string
}

// Validator is implemented by messages with constraints that encoding/json cannot express
type Validator interface {
	Validate() error
}

type Feature interface {
	GetFeatureName() string
	GetRequestType() reflect.Type
	GetResponseType() reflect.Type
	// FailedResponse returns the negative answer sent when no handler produced a response,
	// nil when the feature has none
	FailedResponse() Response
}

type feature struct {
	name         string
	requestType  reflect.Type
	responseType reflect.Type
	failed       func() Response
}

func (f *feature) GetFeatureName() string {
	return f.name
}

func (f *feature) GetRequestType() reflect.Type {
	return f.requestType
}

func (f *feature) GetResponseType() reflect.Type {
	return f.responseType
}

func (f *feature) FailedResponse() Response {
	if f.failed == nil {
		return nil
	}
	return f.failed()
}

// NewFeature describes a feature by sample values of its request and response types
func NewFeature(name string, request Request, response Response, failed func() Response) Feature {
	return &feature{
		name:         name,
		requestType:  elemType(request),
		responseType: elemType(response),
		failed:       failed,
	}
}

func elemType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		return t.Elem()
	}
	return t
}

// Profile groups the features of one OCPP functional block
type Profile struct {
	Name     string
	Features map[string]Feature
}

func NewProfile(name string, features ...Feature) *Profile {
	profile := &Profile{Name: name, Features: make(map[string]Feature)}
	for _, f := range features {
		profile.Features[f.GetFeatureName()] = f
	}
	return profile
}

// Registry resolves feature names of all supported profiles to their message types
type Registry struct {
	features map[string]Feature
}

func NewRegistry(profiles ...*Profile) *Registry {
	r := &Registry{features: make(map[string]Feature)}
	for _, p := range profiles {
		for name, f := range p.Features {
			r.features[name] = f
		}
	}
	return r
}

func (r *Registry) Feature(name string) (Feature, bool) {
	f, ok := r.features[name]
	return f, ok
}

func (r *Registry) ParseRequest(action string, raw json.RawMessage) (Request, error) {
	f, ok := r.features[action]
	if !ok {
		return nil, utility.Errf("unsupported action requested: %s", action)
	}
	request, err := ParseRawJsonRequest(raw, f.GetRequestType())
	if err != nil {
		return nil, err
	}
	if v, ok := request.(Validator); ok {
		if err = v.Validate(); err != nil {
			return nil, err
		}
	}
	return request, nil
}

func (r *Registry) ParseResponse(action string, raw json.RawMessage) (Response, error) {
	f, ok := r.features[action]
	if !ok {
		return nil, utility.Errf("unsupported action: %s", action)
	}
	return ParseRawJsonResponse(raw, f.GetResponseType())
}

func ParseRawJsonRequest(raw json.RawMessage, requestType reflect.Type) (Request, error) {
	value, err := parseRaw(raw, requestType)
	if err != nil {
		return nil, err
	}
	request, ok := value.(Request)
	if !ok {
		return nil, utility.Errf("%v is not a request type", requestType)
	}
	return request, nil
}

func ParseRawJsonResponse(raw json.RawMessage, responseType reflect.Type) (Response, error) {
	value, err := parseRaw(raw, responseType)
	if err != nil {
		return nil, err
	}
	response, ok := value.(Response)
	if !ok {
		return nil, utility.Errf("%v is not a response type", responseType)
	}
	return response, nil
}

func parseRaw(raw json.RawMessage, t reflect.Type) (interface{}, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = []byte("{}")
	}
	value := reflect.New(t).Interface()
	if err := json.Unmarshal(raw, value); err != nil {
		return nil, err
	}
	return value, nil
}
