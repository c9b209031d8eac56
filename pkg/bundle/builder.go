package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ydideh810/nidamllm/pkg/infra/docker"
	"github.com/ydideh810/nidamllm/pkg/infra/logger"
	"github.com/ydideh810/nidamllm/pkg/recipe"
)

// Builder materializes one recipe into a bundle directory. The
// directory is a fresh staging dir owned by the caller; on error the
// caller discards it.
type Builder interface {
	Build(ctx context.Context, rec recipe.Record, dir string) error
}

// Artifact file names inside a bundle directory.
const (
	ServiceFile      = "service.yaml"
	EngineFile       = "engine.json"
	ChatTemplateFile = "chat_template.jinja"
	RuntimeEnvFile   = "runtime.env"
)

// DefaultEngineImage is pulled when a recipe does not name an engine
// image of its own.
const DefaultEngineImage = "vllm/vllm-openai:latest"

// LocalBuilder writes bundle artifacts straight to disk.
type LocalBuilder struct{}

var _ Builder = (*LocalBuilder)(nil)

func (LocalBuilder) Build(_ context.Context, rec recipe.Record, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}

	svc, err := yaml.Marshal(serviceDoc(rec))
	if err != nil {
		return fmt.Errorf("render %s: %w", ServiceFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ServiceFile), svc, 0o644); err != nil {
		return err
	}

	eng, err := json.MarshalIndent(engineDoc(rec), "", "  ")
	if err != nil {
		return fmt.Errorf("render %s: %w", EngineFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, EngineFile), eng, 0o644); err != nil {
		return err
	}

	if rec.ChatTemplate != "" {
		if err := os.WriteFile(filepath.Join(dir, ChatTemplateFile), []byte(rec.ChatTemplate), 0o644); err != nil {
			return err
		}
	}

	var envs strings.Builder
	for _, e := range rec.Envs {
		fmt.Fprintf(&envs, "%s=%s\n", e.Name, e.Value)
	}
	return os.WriteFile(filepath.Join(dir, RuntimeEnvFile), []byte(envs.String()), 0o644)
}

// serviceDoc merges the typed service fields with the passthrough
// keys into one document.
func serviceDoc(rec recipe.Record) map[string]any {
	traffic := map[string]any{"timeout": rec.ServiceConfig.Traffic.Timeout}
	for k, v := range rec.ServiceConfig.Traffic.Extra {
		traffic[k] = v
	}
	resources := map[string]any{
		"gpu":      rec.ServiceConfig.Resources.GPUCount,
		"gpu_type": rec.ServiceConfig.Resources.GPUType,
	}
	for k, v := range rec.ServiceConfig.Resources.Extra {
		resources[k] = v
	}

	doc := map[string]any{
		"name":      rec.ServiceConfig.Name,
		"project":   rec.Project,
		"model":     rec.Ref(),
		"traffic":   traffic,
		"resources": resources,
	}
	for k, v := range rec.ServiceConfig.Extra {
		doc[k] = v
	}
	return doc
}

func engineDoc(rec recipe.Record) map[string]any {
	doc := map[string]any{"model": rec.EngineConfig.Model}
	if rec.EngineConfig.MaxModelLen > 0 {
		doc["max_model_len"] = rec.EngineConfig.MaxModelLen
	}
	if rec.EngineConfig.DType != "" {
		doc["dtype"] = rec.EngineConfig.DType
	}
	if rec.EngineConfig.TrustRemoteCode {
		doc["trust_remote_code"] = true
	}
	for k, v := range rec.EngineConfig.Extra {
		doc[k] = v
	}
	return doc
}

// EngineImage returns the container image a recipe runs on.
func EngineImage(rec recipe.Record) string {
	if img, _ := rec.EngineConfig.Extra["image"].(string); img != "" {
		return img
	}
	return DefaultEngineImage
}

// DockerBuilder makes sure the recipe's engine image is available
// locally before writing the bundle artifacts.
type DockerBuilder struct {
	Client docker.Client
	Inner  Builder
}

var _ Builder = (*DockerBuilder)(nil)

func (b *DockerBuilder) Build(ctx context.Context, rec recipe.Record, dir string) error {
	img := EngineImage(rec)
	has, err := b.Client.HasImage(ctx, img)
	if err != nil {
		return fmt.Errorf("inspect engine image: %w", err)
	}
	if !has {
		logger.WithContext(logger.SetContentHash(ctx, rec.ContentHash)).
			Info("pulling engine image", "image", img)
		if err := b.Client.PullImage(ctx, img); err != nil {
			return fmt.Errorf("pull engine image: %w", err)
		}
	}

	inner := b.Inner
	if inner == nil {
		inner = LocalBuilder{}
	}
	return inner.Build(ctx, rec, dir)
}
