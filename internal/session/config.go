package session

import (
	"github.com/rs/zerolog"

	"lensd/pkg/types"
)

// Defaults applied when corresponding RegistryConfig fields are unset.
const (
	defaultTopK        = 64
	defaultTopP        = 0.95
	defaultTemperature = 1.0
)

// RegistryConfig encapsulates all tunables for Registry construction.
type RegistryConfig struct {
	// Models lists the bundled assets that may be loaded.
	Models []types.Model
	// Backend loads models and opens conversations. Required.
	Backend   Backend
	Sampling  SamplingConfig
	Publisher EventPublisher
	Logger    zerolog.Logger
}

func (c RegistryConfig) withDefaults() RegistryConfig {
	if c.Sampling.TopK <= 0 {
		c.Sampling.TopK = defaultTopK
	}
	if c.Sampling.TopP <= 0 {
		c.Sampling.TopP = defaultTopP
	}
	if c.Sampling.Temperature <= 0 {
		c.Sampling.Temperature = defaultTemperature
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	return c
}
