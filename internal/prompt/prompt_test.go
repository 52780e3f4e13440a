package prompt

import (
	"strings"
	"testing"

	"lensd/pkg/types"
)

func TestBuildTextIncludesSourceAndLanguages(t *testing.T) {
	got := Default.Build(Params{Kind: KindText, SourceText: "hello", SourceLang: "en", TargetLang: "ja"})
	for _, want := range []string{"hello", "from en to ja"} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt %q missing %q", got, want)
		}
	}
}

func TestBuildImageOmitsSourceText(t *testing.T) {
	got := Build(Params{Kind: KindImage, SourceText: "ignored", TargetLang: "de"})
	if strings.Contains(got, "ignored") || !strings.Contains(got, "to de") {
		t.Fatalf("unexpected image prompt %q", got)
	}
}

func TestBuildFollowUpSkipsErrorMessages(t *testing.T) {
	got := Build(Params{
		Kind:        KindFollowUp,
		SourceText:  "hola",
		Translation: "hello",
		History: []types.ChatMessage{
			{Role: types.RoleUser, Text: "is it formal?"},
			{Role: types.RoleAssistant, Text: "generation failed", IsError: true},
		},
	})
	if !strings.Contains(got, "user: is it formal?") || strings.Contains(got, "generation failed") {
		t.Fatalf("unexpected follow-up prompt %q", got)
	}
	if !strings.HasSuffix(got, "assistant:") {
		t.Fatalf("follow-up prompt should end with the assistant cue: %q", got)
	}
}
