package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeWhitespace(t *testing.T) {
	in := "Hello\tworld  \r\nsecond line\r\n\r\n\r\n\r\nthird\x00  line"
	got := NormalizeWhitespace(in)
	want := "Hello world\nsecond line\n\nthird line"
	if got != want {
		t.Fatalf("NormalizeWhitespace = %q, want %q", got, want)
	}
}

func TestNormalizeWhitespaceKeepsParagraphBreaks(t *testing.T) {
	got := NormalizeWhitespace("one\n\ntwo\n\n\nthree")
	want := "one\n\ntwo\n\nthree"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalizeWhitespaceStripsControlChars(t *testing.T) {
	got := NormalizeWhitespace("a\x00b\x07c\x1fd")
	if got != "abcd" {
		t.Fatalf("got %q, want %q", got, "abcd")
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("Hello. How are you? I'm fine, thank you.")
	want := []string{"Hello.", "How are you?", "I'm fine, thank you."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitSentences = %v, want %v", got, want)
	}
}

func TestSplitSentencesCJK(t *testing.T) {
	got := SplitSentences("你好。你今天好吗？很好！")
	if len(got) != 3 {
		t.Fatalf("expected 3 CJK sentences, got %d: %v", len(got), got)
	}
}

func TestSplitSentencesEmpty(t *testing.T) {
	if got := SplitSentences("   "); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
}

func TestSplitParagraphs(t *testing.T) {
	got := SplitParagraphs("first para\nstill first\n\nsecond para\n\n\nthird")
	if len(got) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d: %v", len(got), got)
	}
	if got[1] != "second para" {
		t.Fatalf("paragraph[1] = %q", got[1])
	}
}

func TestWords(t *testing.T) {
	got := Words("It's a Test, with 2 numbers!")
	want := []string{"it's", "a", "test", "with", "2", "numbers"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Words = %v, want %v", got, want)
	}
}

func TestNormalizeForCompare(t *testing.T) {
	a := NormalizeForCompare("  The QUICK   fox ")
	b := NormalizeForCompare("the quick fox")
	if a != b {
		t.Fatalf("%q != %q", a, b)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("Truncate short = %q", got)
	}
	got := Truncate("a much longer sentence that needs cutting", 12)
	if r := []rune(got); len(r) > 12 {
		t.Fatalf("truncated to %d runes: %q", len(r), got)
	}
	if got[len(got)-3:] != "…" {
		t.Fatalf("expected trailing ellipsis, got %q", got)
	}
}
