// Package prompt builds the model prompts for each kind of translation input.
// The templates are plain string formatting; nothing here talks to a model.
package prompt

import (
	"fmt"
	"strings"

	"lensd/pkg/types"
)

// Kind selects a prompt template.
type Kind string

const (
	KindText     Kind = "text"
	KindVoice    Kind = "voice"
	KindImage    Kind = "image"
	KindFollowUp Kind = "follow_up"
)

// Params carries everything a template may reference.
type Params struct {
	Kind       Kind
	SourceText string
	SourceLang string
	TargetLang string
	// Translation and History are only used by follow-up prompts.
	Translation string
	History     []types.ChatMessage
}

// Builder turns Params into a prompt string.
type Builder interface {
	Build(p Params) string
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(Params) string

func (f BuilderFunc) Build(p Params) string { return f(p) }

// Default is the built-in template set.
var Default Builder = BuilderFunc(Build)

// Build renders the built-in template for p.Kind.
func Build(p Params) string {
	src := languageName(p.SourceLang, "the source language (detect it)")
	dst := languageName(p.TargetLang, "English")
	switch p.Kind {
	case KindImage:
		return fmt.Sprintf("Read the text in the image and translate it from %s to %s. "+
			"Reply with the translation only.", src, dst)
	case KindVoice:
		return fmt.Sprintf("The following is a speech transcript and may contain recognition errors. "+
			"Translate it from %s to %s. Reply with the translation only.\n\n%s", src, dst, p.SourceText)
	case KindFollowUp:
		var b strings.Builder
		fmt.Fprintf(&b, "Original (%s): %s\nTranslation (%s): %s\n", src, p.SourceText, dst, p.Translation)
		for _, m := range p.History {
			if m.IsError {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
		}
		b.WriteString("assistant:")
		return b.String()
	default:
		return fmt.Sprintf("Translate the following text from %s to %s. "+
			"Reply with the translation only.\n\n%s", src, dst, p.SourceText)
	}
}

func languageName(code, fallback string) string {
	if c := strings.TrimSpace(code); c != "" {
		return c
	}
	return fallback
}
