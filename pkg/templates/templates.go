package templates

import (
	"fmt"
	"strings"
)

// Template holds per-channel content with {{variable}} placeholders.
type Template struct {
	ID           string
	Name         string
	EmailSubject string
	EmailBody    string
	PushTitle    string
	PushMessage  string
	SMSMessage   string
}

// Rendered is a template with all placeholders substituted.
type Rendered struct {
	EmailSubject string
	EmailBody    string
	PushTitle    string
	PushMessage  string
	SMSMessage   string
}

// Render substitutes variables into every channel field of the template.
// Unknown placeholders are left intact so missing variables are visible in
// the delivered content instead of silently disappearing.
func Render(tmpl Template, variables map[string]any) Rendered {
	return Rendered{
		EmailSubject: ReplaceVariables(tmpl.EmailSubject, variables),
		EmailBody:    ReplaceVariables(tmpl.EmailBody, variables),
		PushTitle:    ReplaceVariables(tmpl.PushTitle, variables),
		PushMessage:  ReplaceVariables(tmpl.PushMessage, variables),
		SMSMessage:   ReplaceVariables(tmpl.SMSMessage, variables),
	}
}

// ReplaceVariables substitutes {{key}} placeholders in text with the string
// form of the corresponding variable value.
func ReplaceVariables(text string, variables map[string]any) string {
	if text == "" || len(variables) == 0 {
		return text
	}

	result := text
	for key, value := range variables {
		result = strings.ReplaceAll(result, "{{"+key+"}}", fmt.Sprint(value))
	}
	return result
}
