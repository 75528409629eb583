// Package config loads the YAML settings shared by the desktop host and
// scenectl.
//
// Example:
//
//	scene:
//	  require_outline: true
//	  strict_children: false
//	  queue_scope: view
//	dispatch:
//	  call_timeout: 2s
//	  renderer_url: ws://localhost:8765/engine
//	engine:
//	  eval_timeout: 5s
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chazu/geoscene/pkg/dispatch"
	"github.com/chazu/geoscene/pkg/engine"
	"github.com/chazu/geoscene/pkg/scene"
)

// Config is the root of the settings file.
type Config struct {
	Scene    SceneConfig    `yaml:"scene"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Engine   EngineConfig   `yaml:"engine"`
}

// SceneConfig maps onto scene.Options.
type SceneConfig struct {
	RequireOutline bool   `yaml:"require_outline"`
	StrictChildren bool   `yaml:"strict_children"`
	QueueScope     string `yaml:"queue_scope"`
}

// DispatchConfig configures delivery to the rendering engine.
type DispatchConfig struct {
	CallTimeout time.Duration `yaml:"call_timeout"`
	RendererURL string        `yaml:"renderer_url,omitempty"`
}

// EngineConfig configures DSL evaluation.
type EngineConfig struct {
	EvalTimeout time.Duration `yaml:"eval_timeout"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Scene:    SceneConfig{QueueScope: scene.ScopeView.String()},
		Dispatch: DispatchConfig{CallTimeout: 10 * time.Second},
		Engine:   EngineConfig{EvalTimeout: engine.DefaultTimeout},
	}
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML on top of Default. Fields missing from b keep their
// defaults.
func Parse(b []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports settings that cannot be applied.
func (c Config) Validate() error {
	if _, err := scene.ParseQueueScope(c.Scene.QueueScope); err != nil {
		return err
	}
	if c.Dispatch.CallTimeout < 0 {
		return fmt.Errorf("dispatch.call_timeout must not be negative, got %s", c.Dispatch.CallTimeout)
	}
	if c.Engine.EvalTimeout <= 0 {
		return fmt.Errorf("engine.eval_timeout must be positive, got %s", c.Engine.EvalTimeout)
	}
	return nil
}

// SceneOptions converts the scene section. An invalid queue scope falls
// back to the view scope; Parse rejects it earlier.
func (c Config) SceneOptions() scene.Options {
	qs, _ := scene.ParseQueueScope(c.Scene.QueueScope)
	return scene.Options{
		RequireOutline: c.Scene.RequireOutline,
		StrictChildren: c.Scene.StrictChildren,
		QueueScope:     qs,
	}
}

// DispatchOptions converts the dispatch section.
func (c Config) DispatchOptions() []dispatch.Option {
	return []dispatch.Option{dispatch.WithCallTimeout(c.Dispatch.CallTimeout)}
}

// EngineOptions converts the engine and scene sections.
func (c Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithSceneOptions(c.SceneOptions()),
		engine.WithTimeout(c.Engine.EvalTimeout),
	}
}
