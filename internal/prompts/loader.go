package prompts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type specFile struct {
	Prompts []struct {
		Name    string `yaml:"name"`
		Version int    `yaml:"version"`
		System  string `yaml:"system"`
		User    string `yaml:"user"`
	} `yaml:"prompts"`
}

// LoadFile registers prompt overrides from a YAML file. An override only
// replaces a built-in when its version is higher, so operators can pin
// experiments without touching code.
func LoadFile(r *Registry, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompts file: %w", err)
	}
	var f specFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse prompts file: %w", err)
	}
	for _, p := range f.Prompts {
		t, err := MakeTemplate(Spec{
			Name:    PromptName(p.Name),
			Version: p.Version,
			System:  p.System,
			User:    p.User,
		})
		if err != nil {
			return fmt.Errorf("prompt %q: %w", p.Name, err)
		}
		r.Register(t)
	}
	return nil
}
