package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text", input: "Late night lo-fi beat, 92 BPM", want: "Late night lo-fi beat, 92 BPM"},
		{name: "trims whitespace", input: "  hello  ", want: "hello"},
		{name: "strips formatting tags", input: "<b>Hello</b> <i>world</i>", want: "Hello world"},
		{name: "drops script body", input: "hi<script>alert('x')</script> there", want: "hi there"},
		{name: "drops style body", input: "<style>body{display:none}</style>ok", want: "ok"},
		{name: "keeps entities verbatim", input: "Tom &amp; Jerry &lt;3", want: "Tom &amp; Jerry &lt;3"},
		{name: "removes javascript scheme", input: "javascript:alert(1)", want: "alert(1)"},
		{name: "removes rebuilt scheme", input: "javajavascript:script:void(0)", want: "void(0)"},
		{name: "removes attributes with tag", input: `<img src=x onerror="alert(1)">caption`, want: "caption"},
		{name: "nested brackets", input: "<<b>script>alert(1)<</b>/script>", want: "scriptalert(1)/script"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"plain ascii text",
		"<script>alert(1)</script>",
		"<p>Hello <a href=\"javascript:evil()\">there</a></p>",
		"<<b>script>alert(1)<</b>/script>",
		"a < b > c",
		"JaVaScRiPt : x",
		"&lt;script&gt;",
	}

	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
		assert.NotContains(t, once, "<script")
	}
}
