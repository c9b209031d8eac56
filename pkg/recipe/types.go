package recipe

import "fmt"

// Record is one validated, normalized recipe entry. ModelName and
// ModelTag are lowercase tokens; ContentHash is the cache key for
// bundle generation and excludes the source alias, so identical
// recipes published by different sources share a bundle.
type Record struct {
	ModelName   string `json:"model_name" yaml:"model_name"`
	ModelTag    string `json:"model_tag" yaml:"model_tag"`
	SourceAlias string `json:"source_alias" yaml:"source_alias"`

	Project       string         `json:"project" yaml:"project"`
	ServiceConfig ServiceConfig  `json:"service_config" yaml:"service_config"`
	EngineConfig  EngineConfig   `json:"engine_config" yaml:"engine_config"`
	ChatTemplate  string         `json:"chat_template,omitempty" yaml:"chat_template,omitempty"`
	Envs          []EnvVar       `json:"envs,omitempty" yaml:"envs,omitempty"`
	Extra         map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`

	ContentHash string `json:"content_hash" yaml:"content_hash"`
}

// Ref returns the name:tag reference for the record.
func (r Record) Ref() string {
	return r.ModelName + ":" + r.ModelTag
}

// FullRef returns the alias-qualified reference.
func (r Record) FullRef() string {
	return r.SourceAlias + "/" + r.Ref()
}

// ServiceConfig describes how the model is served. Unrecognized keys
// are carried in Extra untouched.
type ServiceConfig struct {
	Name      string          `json:"name" yaml:"name"`
	Traffic   TrafficConfig   `json:"traffic" yaml:"traffic"`
	Resources ResourcesConfig `json:"resources" yaml:"resources"`
	Extra     map[string]any  `json:"-" yaml:",inline"`
}

type TrafficConfig struct {
	// Timeout is the request timeout in seconds.
	Timeout int            `json:"timeout" yaml:"timeout"`
	Extra   map[string]any `json:"-" yaml:",inline"`
}

type ResourcesConfig struct {
	GPUCount int            `json:"gpu" yaml:"gpu"`
	GPUType  string         `json:"gpu_type" yaml:"gpu_type"`
	Extra    map[string]any `json:"-" yaml:",inline"`
}

// EngineConfig holds inference engine settings. Beyond the known
// fields everything passes through verbatim in Extra.
type EngineConfig struct {
	Model           string         `json:"model" yaml:"model"`
	MaxModelLen     int            `json:"max_model_len,omitempty" yaml:"max_model_len,omitempty"`
	DType           string         `json:"dtype,omitempty" yaml:"dtype,omitempty"`
	TrustRemoteCode bool           `json:"trust_remote_code,omitempty" yaml:"trust_remote_code,omitempty"`
	Extra           map[string]any `json:"-" yaml:",inline"`
}

// EnvVar is one environment variable exported into the bundle runtime.
type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// EntryError describes the failure of a single document entry. One
// bad entry never fails the rest of the document.
type EntryError struct {
	Key string
	Err error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("entry %q: %v", e.Key, e.Err)
}

func (e EntryError) Unwrap() error { return e.Err }

// Result is the outcome of parsing one catalog document: the records
// that validated plus the per-entry errors for those that did not.
type Result struct {
	Records []Record
	Errors  []EntryError
}
