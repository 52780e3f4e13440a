package types

import "time"

// Model represents a bundled on-device model asset.
type Model struct {
	// Stable identifier for the model.
	// example: gemma-3n-e2b-q4
	ID string `json:"id" example:"gemma-3n-e2b-q4"`
	// Human-friendly name.
	// example: Gemma 3n E2B (Q4)
	Name string `json:"name" example:"Gemma 3n E2B (Q4)"`
	// Absolute path to the model file on disk.
	// example: /var/lib/lensd/models/gemma-3n-e2b-q4.gguf
	Path string `json:"path" example:"/var/lib/lensd/models/gemma-3n-e2b-q4.gguf"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// Vision reports whether the asset ships a vision projector and may accept images.
	Vision bool `json:"vision,omitempty"`
}

// Modality is the kind of input a translation originated from.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityVoice Modality = "voice"
	ModalityImage Modality = "image"
)

// Role identifies the author of a chat message in a translation thread.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one follow-up exchange attached to a translation.
type ChatMessage struct {
	Role      Role      `json:"role" msgpack:"role"`
	Text      string    `json:"text" msgpack:"text"`
	IsError   bool      `json:"is_error,omitempty" msgpack:"is_error,omitempty"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

// TranslationRecord is a single translation together with its follow-up thread.
type TranslationRecord struct {
	ID             string        `json:"id" msgpack:"id"`
	SourceText     string        `json:"source_text" msgpack:"source_text"`
	TranslatedText string        `json:"translated_text" msgpack:"translated_text"`
	SourceLang     string        `json:"source_lang,omitempty" msgpack:"source_lang,omitempty"`
	TargetLang     string        `json:"target_lang,omitempty" msgpack:"target_lang,omitempty"`
	Modality       Modality      `json:"modality" msgpack:"modality"`
	CreatedAt      time.Time     `json:"created_at" msgpack:"created_at"`
	ImageRef       string        `json:"image_ref,omitempty" msgpack:"image_ref,omitempty"`
	Messages       []ChatMessage `json:"messages,omitempty" msgpack:"messages,omitempty"`
}

// Clone returns a deep copy so callers can hand records across goroutines.
func (r TranslationRecord) Clone() TranslationRecord {
	out := r
	if r.Messages != nil {
		out.Messages = make([]ChatMessage, len(r.Messages))
		copy(out.Messages, r.Messages)
	}
	return out
}

// Rect is a normalized rectangle in the 0..1 coordinate space with the origin
// at the bottom-left corner of the image.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) MinX() float64 { return r.X }
func (r Rect) MaxX() float64 { return r.X + r.Width }
func (r Rect) MinY() float64 { return r.Y }
func (r Rect) MaxY() float64 { return r.Y + r.Height }
func (r Rect) MidY() float64 { return r.Y + r.Height/2 }

// Union returns the smallest rectangle containing both r and o.
func (r Rect) Union(o Rect) Rect {
	minX := min(r.MinX(), o.MinX())
	minY := min(r.MinY(), o.MinY())
	maxX := max(r.MaxX(), o.MaxX())
	maxY := max(r.MaxY(), o.MaxY())
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// TextBlock is a group of recognized text lines.
type TextBlock struct {
	Text       string  `json:"text"`
	Box        Rect    `json:"box"`
	Confidence float64 `json:"confidence"`
}
