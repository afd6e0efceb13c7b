package cli

import (
	"gopkg.in/yaml.v3"

	"github.com/rip-project/rip/pkg/config"
)

// effectiveConfig is the configuration after flags, environment and file
// are merged.
type effectiveConfig struct {
	ConfigFile string         `json:"config_file" yaml:"config_file"`
	Graveyard  string         `json:"graveyard" yaml:"graveyard"`
	Settings   *config.Config `json:"settings" yaml:"settings"`
}

// runShowConfig prints the effective configuration as YAML, or JSON with
// --json. It does not open the graveyard.
func (c *command) runShowConfig() error {
	eff := effectiveConfig{
		ConfigFile: config.Path(),
		Graveyard:  config.ResolveGraveyard(c.opts.graveyard, c.cfg),
		Settings:   c.cfg,
	}
	if c.opts.jsonOutput {
		return c.outputJSON(eff)
	}
	enc := yaml.NewEncoder(c.cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(eff); err != nil {
		return err
	}
	return enc.Close()
}
