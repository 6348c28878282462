package voxmesh

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gekko3d/voxmesh/gpu"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogPrefix string        `yaml:"log_prefix"`
	Debug     bool          `yaml:"debug"`
	Growth    GrowthConfig  `yaml:"growth"`
	Buffer    BufferConfig  `yaml:"buffer"`
	Raycast   RaycastConfig `yaml:"raycast"`
}

// GrowthConfig sizes quad buffers as required*Factor + SlackElements.
type GrowthConfig struct {
	Factor        float64 `yaml:"factor"`
	SlackElements int     `yaml:"slack_elements"`
}

type BufferConfig struct {
	LabelPrefix string `yaml:"label_prefix"`
}

type RaycastConfig struct {
	// StepLength is the distance advanced per ray step, in voxels.
	StepLength float32 `yaml:"step_length"`
}

func DefaultConfig() Config {
	return Config{
		LogPrefix: "voxmesh",
		Growth: GrowthConfig{
			Factor:        1.5,
			SlackElements: 6 * 10,
		},
		Buffer: BufferConfig{
			LabelPrefix: "ChunkMesh",
		},
		Raycast: RaycastConfig{
			StepLength: 0.1,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. An empty path yields
// the defaults.
func LoadConfig(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultConfig(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), err
	}
	cfg, err := ParseConfig(b)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Growth.Factor < 1 {
		errs = append(errs, fmt.Errorf("growth.factor must be >= 1, got %v", c.Growth.Factor))
	}
	if c.Growth.SlackElements < 0 {
		errs = append(errs, fmt.Errorf("growth.slack_elements must be >= 0, got %d", c.Growth.SlackElements))
	}
	if c.Raycast.StepLength <= 0 || c.Raycast.StepLength > 1 {
		errs = append(errs, fmt.Errorf("raycast.step_length must be in (0, 1], got %v", c.Raycast.StepLength))
	}
	if strings.TrimSpace(c.Buffer.LabelPrefix) == "" {
		errs = append(errs, errors.New("buffer.label_prefix is empty"))
	}
	return errors.Join(errs...)
}

func (c Config) CapacityFunc() gpu.CapacityFunc {
	return gpu.LinearGrowth(c.Growth.Factor, c.Growth.SlackElements)
}

// Logger builds the DefaultLogger described by the config.
func (c Config) Logger() *DefaultLogger {
	return NewDefaultLogger(c.LogPrefix, c.Debug)
}
