package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KEYSHIFT_"

// LookupFunc reads one environment variable.
type LookupFunc func(name string) (string, bool)

// ApplyEnv overrides engine settings and timing defaults from environment
// variables such as KEYSHIFT_LOG_LEVEL and KEYSHIFT_COMBO_TERM. A nil
// lookup reads the process environment.
func (p *Profile) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	ints := map[string]*int{
		"WORKERS":    &p.Engine.Workers,
		"QUEUE_SIZE": &p.Engine.QueueSize,
	}
	for name, dst := range ints {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return envError(name, v, err)
			}
			*dst = n
		}
	}

	durations := map[string]*Duration{
		"CALLBACK_TIMEOUT": &p.Engine.CallbackTimeout,
		"TERM":             &p.Defaults.Term,
		"QUICK_TAP_TERM":   &p.Defaults.QuickTapTerm,
		"COMBO_TERM":       &p.Defaults.ComboTerm,
	}
	for name, dst := range durations {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return envError(name, v, err)
			}
			*dst = Duration(d)
		}
	}

	if v, ok := lookup(EnvPrefix + "COMBO_FIRST"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("COMBO_FIRST", v, err)
		}
		p.Engine.ComboFirst = b
	}
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok {
		p.Engine.LogLevel = v
	}

	return p.Validate()
}

func envError(name, value string, err error) error {
	return &ValidationError{
		Path:    EnvPrefix + name,
		Message: fmt.Sprintf("invalid value: %v", err),
		Value:   value,
	}
}
