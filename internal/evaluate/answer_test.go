package evaluate

import "testing"

func TestNormalize_FullwidthFold(t *testing.T) {
	got := Normalize("ＨＥＬＬＯ　ｗｏｒｌｄ", false)
	if got != "hello world" {
		t.Errorf("Normalize fullwidth = %q, want %q", got, "hello world")
	}
}

func TestNormalize_WhitespaceCollapse(t *testing.T) {
	got := Normalize("  be \t the   cat ", false)
	if got != "be the cat" {
		t.Errorf("Normalize = %q, want %q", got, "be the cat")
	}
}

func TestNormalize_HyphenFold(t *testing.T) {
	if got := Normalize("well-known", true); got != "wellknown" {
		t.Errorf("Normalize fold = %q, want %q", got, "wellknown")
	}
	if got := Normalize("well-known", false); got != "well-known" {
		t.Errorf("Normalize keep = %q, want %q", got, "well-known")
	}
}

func TestMatch_CaseInsensitive(t *testing.T) {
	if !Match("MISANTHROPE", "misanthrope") {
		t.Error("expected case-insensitive match")
	}
}

func TestMatch_HyphenOptional(t *testing.T) {
	if !Match("well-known", "wellknown") {
		t.Error("expected hyphen-stripped match")
	}
	if !Match("wellknown", "well-known") {
		t.Error("expected hyphen-stripped match in reverse")
	}
}

func TestMatch_ApostropheNeverFolded(t *testing.T) {
	if Match("cats whiskers", "cat's whiskers") {
		t.Error("contraction must match exactly; apostrophes are not folded")
	}
}

func TestMatch_WhitespaceRuns(t *testing.T) {
	if !Match("be  the cat", "be the cat") {
		t.Error("expected whitespace-collapsed match")
	}
}

func TestFirstLetterHint(t *testing.T) {
	cases := []struct {
		answer string
		want   string
	}{
		{"Misanthrope", "m_____"},
		{"  keep up  ", "k_____"},
		{"", "_____"},
		{"   ", "_____"},
	}
	for _, c := range cases {
		if got := FirstLetterHint(c.answer); got != c.want {
			t.Errorf("FirstLetterHint(%q) = %q, want %q", c.answer, got, c.want)
		}
	}
}
