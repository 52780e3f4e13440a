package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// StubEngine stands in for a speech recognizer. It reads a sidecar
// transcript (<audio>.txt) when one exists and otherwise reports nothing
// heard, so the voice path can be driven end to end without a model.
type StubEngine struct{}

// Transcribe implements Engine.
func (StubEngine) Transcribe(ctx context.Context, audioPath, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sidecar := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".txt"
	b, err := os.ReadFile(sidecar)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(b), nil
}
