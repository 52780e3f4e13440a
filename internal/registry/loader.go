// Package registry discovers the bundled model assets on disk.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"lensd/internal/common/fsutil"
	"lensd/pkg/types"
)

// projectorPrefix marks a multimodal projector file. A model "x.gguf" is
// vision-capable when "mmproj-x.gguf" sits next to it.
const projectorPrefix = "mmproj-"

var quantRe = regexp.MustCompile(`(?i)(?:^|[-_.])((?:i?q\d(?:_[0-9a-z]+)*)|bf16|f16|f32)$`)

// GGUFScanner scans a directory for *.gguf model files.
type GGUFScanner struct{}

// NewGGUFScanner returns a scanner.
func NewGGUFScanner() GGUFScanner { return GGUFScanner{} }

// Scan builds the asset list from filenames. ID is the full filename
// (including extension); Path is the absolute file path. Projector files are
// not models and are skipped.
func (GGUFScanner) Scan(dir string) ([]types.Model, error) {
	abs, err := fsutil.Resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names[strings.ToLower(e.Name())] = true
		}
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ".gguf") || strings.HasPrefix(lower, projectorPrefix) {
			continue
		}
		stem := name[:len(name)-len(".gguf")]
		models = append(models, types.Model{
			ID:     name,
			Name:   stem,
			Path:   filepath.Join(abs, name),
			Quant:  quantOf(stem),
			Vision: names[projectorPrefix+lower],
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// LoadDir is a shorthand for NewGGUFScanner().Scan(dir).
func LoadDir(dir string) ([]types.Model, error) {
	return NewGGUFScanner().Scan(dir)
}

func quantOf(stem string) string {
	m := quantRe.FindStringSubmatch(stem)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}
