package inference

import (
	"context"
	"strings"

	"lensd/internal/prompt"
)

// SubmitAudio transcribes the recording at audioPath and submits the
// transcript as a voice request. in supplies the languages; its Kind and Text
// are overwritten. A transcription failure is kept in the snapshot as a
// recoverable error and returned.
func (o *Orchestrator) SubmitAudio(ctx context.Context, audioPath string, in Input) (*Request, error) {
	if o.transcriber == nil {
		return nil, ErrNoTranscriber
	}
	if !o.Ready() {
		return nil, ErrNotReady
	}
	text, err := o.transcriber.Transcribe(ctx, audioPath)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyInput
	}
	if err != nil {
		o.mu.Lock()
		o.err = "transcription failed: " + err.Error()
		o.publishLocked(EventState)
		o.mu.Unlock()
		o.log.Warn().Str("event", "transcription_error").Str("path", audioPath).Err(err).Send()
		return nil, err
	}
	in.Kind = prompt.KindVoice
	in.Text = text
	return o.Submit(ctx, in)
}
