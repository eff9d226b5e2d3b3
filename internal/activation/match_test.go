package activation

import (
	"reflect"
	"testing"
)

func TestMatchKeywordsSubstring(t *testing.T) {
	matched := MatchKeywords("the dragon guards the gold", []string{"dragon", "gold", "kraken"}, false, false)
	want := []string{"dragon", "gold"}
	if !reflect.DeepEqual(matched, want) {
		t.Errorf("expected %v, got %v", want, matched)
	}
}

func TestMatchKeywordsCaseFolding(t *testing.T) {
	if got := MatchKeywords("we reached ELDORIA", []string{"eldoria"}, false, false); len(got) != 1 {
		t.Error("case-insensitive match should fold case")
	}
	if got := MatchKeywords("we reached ELDORIA", []string{"eldoria"}, true, false); len(got) != 0 {
		t.Error("case-sensitive match must not fold case")
	}
}

func TestMatchKeywordsWholeWord(t *testing.T) {
	scenarios := []struct {
		text    string
		keyword string
		match   bool
	}{
		{"this category exists", "cat", false},
		{"the cat sleeps", "cat", true},
		{"cat", "cat", true},
		{"a cat.", "cat", true},
		{"concat-enation", "cat", false},
		{"(cat)", "cat", true},
		{"scatter", "cat", false},
		// A later standalone occurrence still counts after an embedded one.
		{"category, then a cat appeared", "cat", true},
	}

	for _, sc := range scenarios {
		matched := MatchKeywords(sc.text, []string{sc.keyword}, false, true)
		if got := len(matched) == 1; got != sc.match {
			t.Errorf("whole-word %q in %q: match=%v, want %v", sc.keyword, sc.text, got, sc.match)
		}
	}
}

func TestMatchKeywordsWholeWordUnicode(t *testing.T) {
	// Rune boundaries, not byte boundaries.
	if got := MatchKeywords("das drachenei", []string{"drache"}, false, true); len(got) != 0 {
		t.Error("'drache' should not whole-word match inside 'drachenei'")
	}
	if got := MatchKeywords("der drache schläft", []string{"drache"}, false, true); len(got) != 1 {
		t.Error("'drache' should whole-word match as standalone word")
	}
	if got := MatchKeywords("ein büchersaal", []string{"bücher"}, false, true); len(got) != 0 {
		t.Error("multibyte suffix rune should block a whole-word match")
	}
}

func TestMatchKeywordsLiteralSpecialCharacters(t *testing.T) {
	// Keywords carry no pattern meaning.
	if got := MatchKeywords("press x to continue", []string{"."}, false, false); len(got) != 0 {
		t.Error("'.' must match literally, not as a wildcard")
	}
	if got := MatchKeywords("it costs 5 (gold)", []string{"(gold)"}, false, false); len(got) != 1 {
		t.Error("parenthesized keyword should match literally")
	}
}

func TestMatchKeywordsIgnoresBlankEntries(t *testing.T) {
	matched := MatchKeywords("the dragon", []string{"", "  ", "dragon"}, false, false)
	if len(matched) != 1 || matched[0] != "dragon" {
		t.Errorf("blank keywords should be ignored, got %v", matched)
	}
}

func TestMatchKeywordsEmptyInputs(t *testing.T) {
	if got := MatchKeywords("", []string{"dragon"}, false, false); got != nil {
		t.Errorf("empty text should match nothing, got %v", got)
	}
	if got := MatchKeywords("text", nil, false, false); got != nil {
		t.Errorf("nil keywords should match nothing, got %v", got)
	}
}
