package textdetect

import (
	"golang.org/x/text/language"
)

// languageSet matches caller hints against the engine's supported tags.
type languageSet struct {
	tags    []string
	matcher language.Matcher
}

func newLanguageSet(supported []string) *languageSet {
	ls := &languageSet{}
	var parsed []language.Tag
	for _, s := range supported {
		t, err := language.Parse(s)
		if err != nil {
			continue
		}
		ls.tags = append(ls.tags, s)
		parsed = append(parsed, t)
	}
	if len(parsed) > 0 {
		ls.matcher = language.NewMatcher(parsed)
	}
	return ls
}

// intersect returns the supported tags matching hints, in hint order. A nil
// result means auto-detection.
func (ls *languageSet) intersect(hints []string) []string {
	if ls.matcher == nil || len(hints) == 0 {
		return nil
	}
	var out []string
	seen := make(map[int]bool)
	for _, h := range hints {
		t, err := language.Parse(h)
		if err != nil {
			continue
		}
		_, idx, conf := ls.matcher.Match(t)
		if conf < language.High || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, ls.tags[idx])
	}
	return out
}
