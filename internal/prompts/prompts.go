// Package prompts holds the LLM prompt table and the bot's user-facing copy.
package prompts

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type Pair struct {
	System   string `yaml:"system"`
	Template string `yaml:"template"`
}

type Augment struct {
	FAQHeader           string `yaml:"faq_header"`
	ArticlesHeader      string `yaml:"articles_header"`
	GeneticsHeader      string `yaml:"genetics_header"`
	GeneticsUnavailable string `yaml:"genetics_unavailable"`
}

type Set struct {
	DefaultSystem string            `yaml:"default_system"`
	Intents       map[string]string `yaml:"intents"`
	Classifier    Pair              `yaml:"classifier"`
	Rephraser     Pair              `yaml:"rephraser"`
	Augment       Augment           `yaml:"augment"`
	Messages      map[string]string `yaml:"messages"`
}

var (
	once    sync.Once
	loaded  *Set
	loadErr error
)

// Parse decodes a prompt set.
func Parse(b []byte) (*Set, error) {
	var s Set
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	if strings.TrimSpace(s.DefaultSystem) == "" {
		return nil, fmt.Errorf("parse prompts: default_system is empty")
	}
	return &s, nil
}

// Default returns the embedded prompt set; it panics if the file is broken.
func Default() *Set {
	once.Do(func() { loaded, loadErr = Parse(promptsYAML) })
	if loadErr != nil {
		panic(loadErr)
	}
	return loaded
}

// System returns the prompt for intent, or the general prompt when unmapped.
func (s *Set) System(intent string) string {
	if p, ok := s.Intents[intent]; ok && p != "" {
		return p
	}
	return s.DefaultSystem
}

// Msg returns a message with {{key}} placeholders filled from kv pairs.
func (s *Set) Msg(name string, kv ...string) string {
	m, ok := s.Messages[name]
	if !ok {
		return name
	}
	return Fill(strings.TrimRight(m, "\n"), kv...)
}

func Fill(tmpl string, kv ...string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		tmpl = strings.ReplaceAll(tmpl, "{{"+kv[i]+"}}", kv[i+1])
	}
	return tmpl
}
