package templates_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/templates"
)

func TestReplaceVariables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		variables map[string]any
		want      string
	}{
		{
			name:      "single variable",
			text:      "Hello {{name}}!",
			variables: map[string]any{"name": "Alice"},
			want:      "Hello Alice!",
		},
		{
			name:      "repeated variable",
			text:      "{{event}} starts soon. Don't miss {{event}}.",
			variables: map[string]any{"event": "GopherCon"},
			want:      "GopherCon starts soon. Don't miss GopherCon.",
		},
		{
			name:      "non-string value",
			text:      "You have {{count}} tickets",
			variables: map[string]any{"count": 3},
			want:      "You have 3 tickets",
		},
		{
			name:      "unknown placeholder left intact",
			text:      "Hello {{name}}, see {{link}}",
			variables: map[string]any{"name": "Bob"},
			want:      "Hello Bob, see {{link}}",
		},
		{
			name:      "no variables",
			text:      "static text",
			variables: nil,
			want:      "static text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, templates.ReplaceVariables(tt.text, tt.variables))
		})
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	tmpl := templates.Template{
		EmailSubject: "Tickets for {{event}}",
		EmailBody:    "<p>Hi {{name}}, tickets for {{event}} are on sale.</p>",
		PushTitle:    "{{event}}",
		PushMessage:  "Tickets on sale now",
		SMSMessage:   "{{event}}: tickets on sale",
	}

	got := templates.Render(tmpl, map[string]any{"event": "GopherCon", "name": "Alice"})

	assert.Equal(t, "Tickets for GopherCon", got.EmailSubject)
	assert.Equal(t, "<p>Hi Alice, tickets for GopherCon are on sale.</p>", got.EmailBody)
	assert.Equal(t, "GopherCon", got.PushTitle)
	assert.Equal(t, "Tickets on sale now", got.PushMessage)
	assert.Equal(t, "GopherCon: tickets on sale", got.SMSMessage)
}
