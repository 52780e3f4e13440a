package session

// SanityReport describes whether the runtime can load models at all.
type SanityReport struct {
	LlamaBuilt bool   `json:"llama_built"`
	Models     int    `json:"models"`
	Error      string `json:"error,omitempty"`
}

// SanityCheck validates the runtime without mutating state.
func (r *Registry) SanityCheck() SanityReport {
	rep := SanityReport{LlamaBuilt: llamaBuilt, Models: len(r.models)}
	switch {
	case len(r.models) == 0:
		rep.Error = ErrNoModelAssets.Error()
	case !llamaBuilt:
		rep.Error = "llama support not built (missing 'llama' build tag)"
	}
	return rep
}
