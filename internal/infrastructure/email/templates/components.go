// Package templates provides email template components
package templates

import (
	"bytes"
	"html/template"
	"log"
)

type ButtonProps struct {
	Text            string
	URL             string
	BackgroundColor string
	TextColor       string
}

var buttonTemplate = template.Must(template.New("emailButton").Parse(`
<table role="presentation" border="0" cellpadding="0" cellspacing="0" style="margin-bottom: 16px;">
  <tr>
    <td style="border-radius: 4px; background-color: {{.BackgroundColor}};" bgcolor="{{.BackgroundColor}}" align="center">
      <a href="{{.URL}}" target="_blank" style="display: inline-block; padding: 12px 24px; font-size: 16px; font-weight: bold; text-decoration: none; color: {{.TextColor}};">{{.Text}}</a>
    </td>
  </tr>
</table>`))

// GetButton renders a call-to-action link. html/template escapes the URL
// and rejects unsafe schemes.
func GetButton(props ButtonProps) string {
	if props.BackgroundColor == "" {
		props.BackgroundColor = "#0867ec"
	}
	if props.TextColor == "" {
		props.TextColor = "#ffffff"
	}
	var buf bytes.Buffer
	if err := buttonTemplate.Execute(&buf, props); err != nil {
		log.Printf("Error executing email button template: %v", err)
		return ""
	}
	return buf.String()
}
