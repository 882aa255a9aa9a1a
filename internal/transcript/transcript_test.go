package transcript_test

import (
	"math"
	"testing"

	"dubber/internal/transcript"
)

const sampleVTT = `WEBVTT
Kind: captions
Language: en

00:00:01.000 --> 00:00:03.500
Hello <c>everyone</c> and welcome

00:00:03.500 --> 00:00:05.000
Hello everyone and welcome

00:00:05.000 --> 00:00:08.250
to this <b>video</b> about Go.
`

func TestParseVTT(t *testing.T) {
	lines := transcript.ParseVTT(sampleVTT)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines after duplicate collapse, got %d", len(lines))
	}
	if lines[0].Text != "Hello everyone and welcome" {
		t.Fatalf("expected tags stripped, got %q", lines[0].Text)
	}
	if lines[0].Start != 1.0 || lines[0].End != 3.5 {
		t.Fatalf("unexpected times: %v %v", lines[0].Start, lines[0].End)
	}
	if lines[1].Text != "to this video about Go." {
		t.Fatalf("unexpected second line: %q", lines[1].Text)
	}
	if lines[1].Index != 1 {
		t.Fatalf("expected renumbered index, got %d", lines[1].Index)
	}
}

func TestParseVTTEmpty(t *testing.T) {
	if lines := transcript.ParseVTT("WEBVTT\n\n"); len(lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(lines))
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := transcript.ParseTimestamp("01:02:03.450")
	if err != nil {
		t.Fatalf("ParseTimestamp failed: %v", err)
	}
	want := 3723.45
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if _, err := transcript.ParseTimestamp("1:2:3"); err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
}

func TestFormatTimestampRoundTrip(t *testing.T) {
	for _, value := range []string{"00:00:00.000", "00:01:30.500", "02:15:59.999"} {
		seconds, err := transcript.ParseTimestamp(value)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) failed: %v", value, err)
		}
		if got := transcript.FormatTimestamp(seconds); got != value {
			t.Fatalf("round trip %q, got %q", value, got)
		}
	}
}

func TestPreprocessMergesFragments(t *testing.T) {
	lines := []transcript.Line{
		{Index: 0, Start: 0, End: 2, Text: "In this video we will"},
		{Index: 1, Start: 2, End: 4, Text: "look at goroutines."},
		{Index: 2, Start: 4, End: 6, Text: "Channels come next."},
	}

	merged := transcript.Preprocess(lines)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged lines, got %d", len(merged))
	}
	if merged[0].Text != "In this video we will look at goroutines." {
		t.Fatalf("unexpected merge: %q", merged[0].Text)
	}
	if merged[0].Start != 0 || merged[0].End != 4 {
		t.Fatalf("expected time span preserved, got %v-%v", merged[0].Start, merged[0].End)
	}
	if merged[1].Index != 1 {
		t.Fatalf("expected renumbered index, got %d", merged[1].Index)
	}
}

func TestPreprocessRemovesRollingDuplicates(t *testing.T) {
	lines := []transcript.Line{
		{Index: 0, Start: 0, End: 2, Text: "Welcome to the channel."},
		{Index: 1, Start: 2, End: 4, Text: "Welcome to the channel."},
		{Index: 2, Start: 4, End: 6, Text: "Welcome to the channel. Today we talk about Go."},
	}

	merged := transcript.Preprocess(lines)
	if len(merged) != 2 {
		t.Fatalf("expected 2 lines, got %d: %#v", len(merged), merged)
	}
	if merged[1].Text != "Today we talk about Go." {
		t.Fatalf("expected overlap stripped, got %q", merged[1].Text)
	}
}

func TestPreprocessEmpty(t *testing.T) {
	if got := transcript.Preprocess(nil); got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}

func TestRemoveFillers(t *testing.T) {
	got := transcript.RemoveFillers("So um this is, you know, basically the the main idea")
	want := "this is, , the main idea"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRemoveFillersCollapsesRepeats(t *testing.T) {
	got := transcript.RemoveFillers("I I think think this works")
	if got != "I think this works" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestRemoveDuplicateLines(t *testing.T) {
	input := "첫 번째 문장입니다.\n첫 번째 문장입니다.\n두 번째 문장입니다."
	got := transcript.RemoveDuplicateLines(input)
	want := "첫 번째 문장입니다.\n두 번째 문장입니다."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRemoveDuplicateLinesPrefersLonger(t *testing.T) {
	input := "짧은 문장\n짧은 문장 더 길어진 버전"
	got := transcript.RemoveDuplicateLines(input)
	if got != "짧은 문장 더 길어진 버전" {
		t.Fatalf("expected longer line kept, got %q", got)
	}
}

func TestIsSentenceEnd(t *testing.T) {
	cases := map[string]bool{
		"Done.":        true,
		"Really?":      true,
		"끝났습니다。":       true,
		"trailing   ":  false,
		"no terminator": false,
		"":             false,
	}
	for text, want := range cases {
		if got := transcript.IsSentenceEnd(text); got != want {
			t.Fatalf("IsSentenceEnd(%q) = %v, want %v", text, got, want)
		}
	}
}
