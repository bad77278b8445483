package ai

import (
	"strings"
	"testing"
)

func TestCleanJSONStripsFences(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"bare", `{"overall_score": 80}`, `{"overall_score": 80}`},
		{"json fence", "```json\n{\"overall_score\": 80}\n```", `{"overall_score": 80}`},
		{"plain fence", "```\n{\"overall_score\": 80}\n```", `{"overall_score": 80}`},
		{"surrounding whitespace", "  \n{\"overall_score\": 80}\n  ", `{"overall_score": 80}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanJSON(tc.input); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestParseResultClampsScore(t *testing.T) {
	result, err := ParseResult(`{"overall_score": 140.2, "strengths": ["a"]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.OverallScore != 100 {
		t.Fatalf("expected clamp to 100 got %v", result.OverallScore)
	}

	result, err = ParseResult(`{"overall_score": -3}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.OverallScore != 0 {
		t.Fatalf("expected clamp to 0 got %v", result.OverallScore)
	}
}

func TestParseResultRejectsEmptyAndMalformed(t *testing.T) {
	if _, err := ParseResult("```json\n```"); err == nil {
		t.Fatalf("expected error for empty reply")
	}
	if _, err := ParseResult("not json at all"); err == nil {
		t.Fatalf("expected error for malformed reply")
	}
}

func TestPromptVariesByAnalysisType(t *testing.T) {
	comprehensive := Prompt("COMPREHENSIVE", "resume text")
	ats := Prompt("ATS_SCAN", "resume text")
	if comprehensive == ats {
		t.Fatalf("expected type-specific instructions")
	}
	if !strings.Contains(ats, "resume text") {
		t.Fatalf("expected resume text embedded in prompt")
	}
}
