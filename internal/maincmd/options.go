package maincmd

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// machineOptions configures the machines created by the run command. The
// sources are, in increasing precedence: defaults, the YAML options file,
// the CAPUCINE_* environment variables, the command-line flags.
type machineOptions struct {
	MaxSteps int  `yaml:"max_steps" env:"MAX_STEPS"`
	Trace    bool `yaml:"trace" env:"TRACE"`
	NoColor  bool `yaml:"no_color" env:"NO_COLOR"`
}

func (c *Cmd) machineOptions() (machineOptions, error) {
	var o machineOptions

	if c.OptionsFile != "" {
		b, err := os.ReadFile(c.OptionsFile)
		if err != nil {
			return o, err
		}
		if err := yaml.Unmarshal(b, &o); err != nil {
			return o, fmt.Errorf("%s: %w", c.OptionsFile, err)
		}
	}

	if err := env.Parse(&o, env.Options{Prefix: "CAPUCINE_"}); err != nil {
		return o, err
	}

	if c.flags["trace"] {
		o.Trace = c.TraceSteps
	}
	if c.flags["no-color"] {
		o.NoColor = c.NoColor
	}
	return o, nil
}
