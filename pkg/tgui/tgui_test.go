package tgui

import (
	"testing"
	"unicode/utf8"
)

func TestTruncRunes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hel…"},
		{"héllo wörld", 3, "hé…"},
		{"abc", 1, "…"},
		{"abc", 0, ""},
	}
	for _, tc := range cases {
		got := TruncRunes(tc.in, tc.n)
		if got != tc.want {
			t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
		if tc.n > 0 && utf8.RuneCountInString(got) > tc.n {
			t.Fatalf("TruncRunes(%q, %d) has %d runes", tc.in, tc.n, utf8.RuneCountInString(got))
		}
	}
}

func TestHTMLHelpersEscape(t *testing.T) {
	t.Parallel()

	if got := B("a<b").String(); got != "<b>a&lt;b</b>" {
		t.Fatalf("B = %q", got)
	}
	if got := Link(`x&y`, `https://e.x/?a=1&b="2"`).String(); got != `<a href="https://e.x/?a=1&amp;b=&#34;2&#34;">x&amp;y</a>` {
		t.Fatalf("Link = %q", got)
	}
	if got := Link("plain", " ").String(); got != "plain" {
		t.Fatalf("Link without url = %q", got)
	}
	if got := Join(" & ", B("a"), "", I("b")).String(); got != "<b>a</b> &amp; <i>b</i>" {
		t.Fatalf("Join = %q", got)
	}
}

func TestInlineMarkup(t *testing.T) {
	t.Parallel()

	if NewInline().Markup() != nil {
		t.Fatalf("empty keyboard should have nil markup")
	}
	rm := NewInline().Row(URLBtn("Open", "https://e.x")).Row().Markup()
	if rm == nil || len(rm.InlineKeyboard) != 1 || rm.InlineKeyboard[0][0].URL != "https://e.x" {
		t.Fatalf("markup = %+v", rm)
	}
}
