package assistant

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"n8n-assist-backend/internal/llm"
)

//go:embed prompt.yaml
var defaultPrompt []byte

type ModelSpec struct {
	APIBase  string `yaml:"api_base"`
	APIShape string `yaml:"api_shape"`
}

// PromptSpec is the YAML-described behaviour of the assistant: its system instruction
// and the allow-list of models it may forward.
type PromptSpec struct {
	System        string               `yaml:"system"`
	DefaultModel  string               `yaml:"default_model"`
	HistoryWindow int                  `yaml:"history_window"`
	ContextLimit  int                  `yaml:"context_limit"`
	Models        map[string]ModelSpec `yaml:"models"`
}

// LoadPromptSpec reads a prompt spec from path, or the embedded default when path is empty.
func LoadPromptSpec(path string) (PromptSpec, error) {
	b := defaultPrompt
	if strings.TrimSpace(path) != "" {
		var err error
		b, err = os.ReadFile(path)
		if err != nil {
			return PromptSpec{}, err
		}
	}
	return ParsePromptSpec(b)
}

func ParsePromptSpec(b []byte) (PromptSpec, error) {
	var spec PromptSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return PromptSpec{}, fmt.Errorf("parse prompt spec: %w", err)
	}
	if strings.TrimSpace(spec.System) == "" {
		return PromptSpec{}, fmt.Errorf("prompt spec has no system instruction")
	}
	if _, ok := spec.Models[spec.DefaultModel]; !ok {
		return PromptSpec{}, fmt.Errorf("default model %q is not in the model list", spec.DefaultModel)
	}
	if spec.HistoryWindow <= 0 {
		spec.HistoryWindow = 8
	}
	if spec.ContextLimit <= 0 {
		spec.ContextLimit = 8000
	}
	return spec, nil
}

// ResolvedModel is an allow-listed model together with where and how to call it.
type ResolvedModel struct {
	Name    string
	BaseURL string
	Shape   llm.APIShape
}

// ResolveModel looks name up in the allow-list and falls back to the default model.
func (p PromptSpec) ResolveModel(name string) ResolvedModel {
	name = strings.TrimSpace(name)
	spec, ok := p.Models[name]
	if !ok {
		if name != "" {
			log.Printf("[chat] model %q is not allowed, using %s", name, p.DefaultModel)
		}
		name = p.DefaultModel
		spec = p.Models[name]
	}
	return ResolvedModel{Name: name, BaseURL: spec.APIBase, Shape: llm.ParseShape(spec.APIShape)}
}
