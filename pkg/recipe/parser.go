package recipe

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/ydideh810/nidamllm/pkg/infra/logger"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://github.com/ydideh810/nidamllm/recipe-entry.json"

// Parser validates and normalizes catalog documents. It is safe for
// concurrent use.
type Parser struct {
	schema *jsonschema.Schema
}

// NewParser compiles the embedded entry schema.
func NewParser() (*Parser, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("decode embedded schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("register embedded schema: %w", err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}
	return &Parser{schema: sch}, nil
}

// MustParser is NewParser for wiring paths where the embedded schema
// failing to compile is a programming error.
func MustParser() *Parser {
	p, err := NewParser()
	if err != nil {
		panic(err)
	}
	return p
}

// CheckDocument reports whether data is a structurally sound catalog
// document: a YAML mapping at the top level. Entry bodies are not
// validated here.
func CheckDocument(data []byte) error {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ErrDocument.WithCause(err)
	}
	return nil
}

// ParseDocument parses every entry of a catalog document published
// by sourceAlias. Entries are keyed name:tag; a bad entry yields an
// EntryError and the remaining entries still parse. The returned
// error is non-nil only when the document itself is unreadable.
func (p *Parser) ParseDocument(data []byte, sourceAlias string) (Result, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Result{}, ErrDocument.WithCause(err)
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var res Result
	for _, key := range keys {
		node := doc[key]
		rec, err := p.parseEntry(key, &node, sourceAlias)
		if err != nil {
			res.Errors = append(res.Errors, EntryError{Key: key, Err: err})
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func (p *Parser) parseEntry(key string, node *yaml.Node, sourceAlias string) (Record, error) {
	name, tag, err := SplitKey(key)
	if err != nil {
		return Record{}, err
	}

	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return Record{}, ErrSchema.WithMessagef("entry body is not a mapping").WithCause(err)
	}
	normalizeBody(raw, name)

	canonical, err := canonicalJSON(raw)
	if err != nil {
		return Record{}, ErrSchema.WithCause(err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(canonical))
	if err != nil {
		return Record{}, ErrSchema.WithCause(err)
	}
	if err := p.schema.Validate(inst); err != nil {
		return Record{}, ErrSchema.WithCause(err)
	}

	var b struct {
		Project       string         `yaml:"project"`
		ServiceConfig ServiceConfig  `yaml:"service_config"`
		EngineConfig  EngineConfig   `yaml:"engine_config"`
		ChatTemplate  string         `yaml:"chat_template"`
		Envs          []EnvVar       `yaml:"envs"`
		Extra         map[string]any `yaml:",inline"`
	}
	if err := node.Decode(&b); err != nil {
		return Record{}, ErrSchema.WithCause(err)
	}
	if b.ServiceConfig.Name == "" {
		b.ServiceConfig.Name = name
	}

	rec := Record{
		ModelName:     name,
		ModelTag:      tag,
		SourceAlias:   sourceAlias,
		Project:       b.Project,
		ServiceConfig: b.ServiceConfig,
		EngineConfig:  b.EngineConfig,
		ChatTemplate:  b.ChatTemplate,
		Envs:          b.Envs,
		Extra:         b.Extra,
		ContentHash:   hashBody(canonical),
	}
	logger.Default().Debug("parsed recipe entry",
		"ref", rec.Ref(), "source", sourceAlias, "content_hash", rec.ContentHash)
	return rec, nil
}

// SplitKey splits a top-level catalog key into its lowercase name
// and tag tokens. The split happens on the first colon, so tags may
// themselves contain colons.
func SplitKey(key string) (name, tag string, err error) {
	i := strings.Index(key, ":")
	if i < 0 {
		return "", "", ErrMalformedKey.WithMessagef("key %q has no tag separator", key)
	}
	name = strings.ToLower(strings.TrimSpace(key[:i]))
	tag = strings.ToLower(strings.TrimSpace(key[i+1:]))
	if name == "" || tag == "" {
		return "", "", ErrMalformedKey.WithMessagef("key %q has an empty name or tag", key)
	}
	if strings.Contains(name, "/") {
		return "", "", ErrMalformedKey.WithMessagef("model name %q must not contain a slash", name)
	}
	return name, tag, nil
}

// normalizeBody applies defaults that participate in the content
// hash: the service name falls back to the model name.
func normalizeBody(raw map[string]any, name string) {
	sc, ok := raw["service_config"].(map[string]any)
	if !ok {
		if _, present := raw["service_config"]; present {
			// Wrong type; leave it for schema validation to reject.
			return
		}
		sc = make(map[string]any)
		raw["service_config"] = sc
	}
	switch v, present := sc["name"]; {
	case !present:
		sc["name"] = name
	case v == "":
		sc["name"] = name
	}
	// A non-string name stays as written so schema validation can
	// reject it.
}
