package types

// TranslateRequest is the payload for POST /translate.
type TranslateRequest struct {
	// Input kind: text, voice, image or follow_up.
	// example: text
	Kind string `json:"kind" example:"text"`
	// Source text (typed, transcribed, or the follow-up question).
	// example: Where is the train station?
	Text string `json:"text,omitempty" example:"Where is the train station?"`
	// Optional source language; empty lets the model detect it.
	// example: en
	SourceLang string `json:"source_lang,omitempty" example:"en"`
	// Optional target language; empty uses the configured default.
	// example: ja
	TargetLang string `json:"target_lang,omitempty" example:"ja"`
	// Image bytes (png or jpeg) for image input, base64 in JSON.
	Image []byte `json:"image,omitempty"`
	// Optional reference to the stored source image.
	ImageRef string `json:"image_ref,omitempty"`
	// AudioPath is a local recording to transcribe for voice input.
	AudioPath string `json:"audio_path,omitempty"`
	// UseCapture translates the most recent captured photo instead of Image.
	UseCapture bool `json:"use_capture,omitempty"`
}

// SwitchRequest is the payload for POST /switch.
type SwitchRequest struct {
	// example: gemma-3n-e2b-q4
	Model string `json:"model" example:"gemma-3n-e2b-q4"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// example: 400
	Code int `json:"code" example:"400"`
}

// GenerationMetrics summarizes the last completed generation.
type GenerationMetrics struct {
	Tokens          int      `json:"tokens"`
	DurationMS      int64    `json:"duration_ms"`
	TokensPerSecond *float64 `json:"tokens_per_second,omitempty"`
}

// StatusResponse is returned by GET /status and streamed by POST /translate.
type StatusResponse struct {
	// Orchestrator state: idle, loading, ready, error, critical.
	// example: ready
	State string `json:"state" example:"ready"`
	// Active model id, if any.
	// example: gemma-3n-e2b-q4
	Model string `json:"model,omitempty" example:"gemma-3n-e2b-q4"`
	// Model currently being loaded, if any.
	Loading string `json:"loading,omitempty"`
	// Recoverable error message from the last failed operation.
	Error string `json:"error,omitempty"`
	// Streaming reports whether a generation is in flight.
	Streaming bool `json:"streaming"`
	// Observable translation text of the current record.
	Translation string `json:"translation,omitempty"`
	// Current (transient or committed) record.
	Record *TranslationRecord `json:"record,omitempty"`
	// Committed reports whether the current record has been persisted.
	Committed bool `json:"committed"`
	// Metrics of the last completed generation.
	Metrics *GenerationMetrics `json:"metrics,omitempty"`
	// Uptime of the server in seconds.
	UptimeSeconds int64 `json:"uptime_seconds,omitempty"`
}

// TextDetectResponse is returned by POST /detect-text.
type TextDetectResponse struct {
	Blocks []TextBlock `json:"blocks"`
}

// StatusEvent is one line of the POST /translate NDJSON stream and one
// message on the /events WebSocket.
type StatusEvent struct {
	// Why the state changed: submitted, flush, completed, failed, committed, ...
	// example: flush
	Type   string         `json:"type" example:"flush"`
	Status StatusResponse `json:"status"`
}

// CaptureResponse is returned by POST /capture.
type CaptureResponse struct {
	Seq    uint64 `json:"seq"`
	Device string `json:"device"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// Masked reports whether the subject-focus render isolated a subject.
	Masked bool `json:"masked"`
	// FocusError explains an unmasked render.
	FocusError string `json:"focus_error,omitempty"`
	// Text blocks detected in the photo.
	Blocks []TextBlock `json:"blocks"`
}

// SelectionRequest is the payload for POST /selection. A nil point clears
// the selection and focuses on every detected subject.
type SelectionRequest struct {
	Point *Point `json:"point"`
}

// Point is a normalized image coordinate with the origin at the bottom-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CameraResponse is returned by POST /camera/{action}.
type CameraResponse struct {
	Running bool   `json:"running"`
	Device  string `json:"device,omitempty"`
}

// ThreadsResponse is returned by GET /threads, newest first.
type ThreadsResponse struct {
	Threads []TranslationRecord `json:"threads"`
}
