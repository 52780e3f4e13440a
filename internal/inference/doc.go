// Package inference mediates between user requests (typed text, voice
// transcripts, images, follow-up questions) and the active ModelSession.
//
//   - orchestrator.go: Orchestrator type, constructor, Start/Close, snapshots.
//   - config.go: Config and package defaults.
//   - switch.go: SwitchModel, last-call-wins model replacement.
//   - submit.go: Submit and the streaming loop.
//   - streambuf.go: StreamBuffer, time-throttled fragment batching.
//   - commit.go: grace-period commit, Discard, Thread.
//   - audio.go: SubmitAudio (transcription, then voice submit).
//   - bus.go: fan-out of state-change events to subscribers.
//   - metrics.go: Prometheus collectors.
//
// At most one Request is active per Orchestrator. A newer Submit cancels the
// previous Request under the same lock that guards observable state, so a
// superseded stream can never change what subscribers see.
package inference
