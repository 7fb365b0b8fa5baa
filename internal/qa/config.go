package qa

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig is the on-disk form of a run, written by the wizard and
// accepted by the root command's --config flag.
type RunConfig struct {
	InputDir string `yaml:"input_dir"`
	Mode     string `yaml:"mode"`
	Workbook string `yaml:"workbook"`
	Overlay  string `yaml:"overlay,omitempty"`
	Workers  int    `yaml:"workers,omitempty"`
}

// LoadRunConfig reads and validates a run configuration file.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.InputDir == "" {
		return nil, fmt.Errorf("config %s: input_dir is required", path)
	}
	if _, err := ParseMode(cfg.Mode); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration as YAML.
func (c *RunConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// ToRunContext resolves the config into a runnable context, applying the
// mode's default workbook name when none is set.
func (c *RunConfig) ToRunContext() (RunContext, error) {
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return RunContext{}, err
	}
	workbook := c.Workbook
	if workbook == "" {
		workbook = DefaultWorkbookName(mode)
	}
	return RunContext{
		InputDir:     c.InputDir,
		Mode:         mode,
		WorkbookPath: workbook,
		OverlayPath:  c.Overlay,
		Workers:      c.Workers,
	}, nil
}

// DefaultWorkbookName returns the conventional workbook filename per mode.
func DefaultWorkbookName(mode Mode) string {
	switch mode {
	case ModeNEMABody:
		return "nema_body_metrics.xlsx"
	case ModeTorso:
		return "torso_coil_analysis.xlsx"
	default:
		return "output_metrics.xlsx"
	}
}
