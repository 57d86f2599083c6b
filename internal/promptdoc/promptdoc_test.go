package promptdoc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Document
	}{
		{
			name: "body and double placeholder",
			text: "Clean the text.\nKeep casing.\n\nUser input:\n{{input}}\n",
			want: Document{Body: "Clean the text.\nKeep casing.", Placeholder: PlaceholderDouble, HasInputBlock: true},
		},
		{
			name: "single placeholder with crlf",
			text: "Rules here.\r\n\r\nUser input:\r\n{input}\r\n",
			want: Document{Body: "Rules here.", Placeholder: PlaceholderSingle, HasInputBlock: true},
		},
		{
			name: "focus section",
			text: "Rules.\n\n# Challenger Focus\n\nRound objective: win.\n\nUser input:\n{{input}}\n",
			want: Document{Body: "Rules.", Focus: "Round objective: win.", Placeholder: PlaceholderDouble, HasInputBlock: true},
		},
		{
			name: "tail after placeholder",
			text: "Rules.\n\nUser input:\n{{input}}\n\nCleaned:\n",
			want: Document{Body: "Rules.", Placeholder: PlaceholderDouble, Tail: "\n\nCleaned:", HasInputBlock: true},
		},
		{
			name: "no input block falls back to canonical",
			text: "Just rules, {{input}} inline.",
			want: Document{Body: "Just rules, {{input}} inline.", Placeholder: PlaceholderDouble},
		},
		{
			name: "label mid-line is not a block",
			text: "Say User input:\n{{input}} please",
			want: Document{Body: "Say User input:\n{{input}} please", Placeholder: PlaceholderDouble},
		},
		{
			name: "header without blank line is body text",
			text: "Rules.\n# Challenger Focus\nstill body\n\nUser input:\n{{input}}",
			want: Document{Body: "Rules.\n# Challenger Focus\nstill body", Placeholder: PlaceholderDouble, HasInputBlock: true},
		},
		{
			name: "focus at top",
			text: "# Challenger Focus\n\nfix it\n\nUser input:\n{{input}}",
			want: Document{Focus: "fix it", Placeholder: PlaceholderDouble, HasInputBlock: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text))
		})
	}
}

func TestBuild(t *testing.T) {
	doc := Document{Body: "Rules.", Focus: "Priority rules:\n- one", Placeholder: PlaceholderSingle}
	assert.Equal(t,
		"Rules.\n\n# Challenger Focus\n\nPriority rules:\n- one\n\nUser input:\n{input}\n",
		doc.Build())

	doc.Focus = ""
	assert.Equal(t, "Rules.\n\nUser input:\n{input}\n", doc.Build())
}

func TestParseBuildFixedPoint(t *testing.T) {
	inputs := []string{
		"Rules.\n\nUser input:\n{{input}}\n",
		"Rules.\n\n# Challenger Focus\n\nold focus\n\nUser input:\n{input}\n\nCleaned:",
		"No placeholder at all",
		"\n\n  Indented body\n\n",
	}
	for _, in := range inputs {
		first := Parse(in)
		rebuilt := Parse(first.Build())
		assert.Equal(t, first.Body, rebuilt.Body)
		assert.Equal(t, first.Placeholder, rebuilt.Placeholder)
		assert.Equal(t, first.Tail, rebuilt.Tail)
		assert.Equal(t, first.Focus, rebuilt.Focus)
		assert.True(t, rebuilt.HasInputBlock)
	}
}

func TestParse_QuotedExampleBlockStaysInBody(t *testing.T) {
	in := "Example format:\nUser input:\n{{input}}\n\nRules here.\n\n# Challenger Focus\n\nold focus\n\nUser input:\n{{input}}\n"
	doc := Parse(in)
	assert.Equal(t, "Example format:\nUser input:\n{{input}}\n\nRules here.", doc.Body)
	assert.Equal(t, "old focus", doc.Focus)
	assert.Empty(t, doc.Tail)

	doc.Focus = "new focus"
	out := doc.Build()
	assert.Contains(t, out, "new focus")
	assert.NotContains(t, out, "old focus")
	assert.Equal(t, 2, strings.Count(out, InputLabel))
	assert.Equal(t, doc, Parse(out))

	plain := Parse("Example format:\nUser input:\n{input}\n\nRules.\n\nUser input:\n{{input}}\n\nCleaned:\n")
	assert.Equal(t, "Example format:\nUser input:\n{input}\n\nRules.", plain.Body)
	assert.Equal(t, PlaceholderDouble, plain.Placeholder)
	assert.Equal(t, "\n\nCleaned:", plain.Tail)
	assert.Equal(t, plain, Parse(plain.Build()))
}

func TestParse_FocusAfterInputBlock(t *testing.T) {
	doc := Parse("Rules.\n\nUser input:\n{{input}}\n\n# Challenger Focus\n\nlate focus")
	assert.Equal(t, "Rules.", doc.Body)
	assert.Equal(t, "late focus", doc.Focus)
	assert.True(t, doc.HasInputBlock)
	assert.Equal(t, "Rules.\n\n# Challenger Focus\n\nlate focus\n\nUser input:\n{{input}}\n", doc.Build())
}

func TestRender(t *testing.T) {
	assert.Equal(t, "Fix: hello there", Render("Fix: {{input}}", "hello there"))
	assert.Equal(t, "Fix: a / a", Render("Fix: {input} / {{input}}", "a"))
	assert.Equal(t, "Rules.\n\nUser input:\nhi\n\nCleaned:", Render("Rules.\n", "hi"))
}
