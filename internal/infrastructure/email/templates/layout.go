// Package templates provides email template layout
package templates

import (
	"bytes"
	"html/template"
	"log"
)

type EmailLayoutProps struct {
	Preheader  string
	Title      string
	Content    string
	FooterText string
}

// Internal template data structure with safe HTML typing
type emailTemplateData struct {
	Preheader  string
	Title      string
	Content    template.HTML // Mark as safe HTML to prevent escaping
	FooterText string
}

var emailLayoutTemplate = template.Must(template.New("emailLayout").Parse(`
<!doctype html>
<html lang="en">
  <head>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8">
    <title>{{.Title}}</title>
  </head>
  <body style="font-family: Helvetica, sans-serif; font-size: 16px; line-height: 1.4; background-color: #f4f5f6; margin: 0; padding: 0;">
    <span style="display: none; max-height: 0; overflow: hidden; opacity: 0;">{{.Preheader}}</span>
    <table role="presentation" border="0" cellpadding="0" cellspacing="0" style="width: 100%; background-color: #f4f5f6;" width="100%">
      <tr>
        <td style="padding: 24px 8px;" align="center">
          <table role="presentation" border="0" cellpadding="0" cellspacing="0" style="max-width: 600px; width: 100%; background: #ffffff; border: 1px solid #eaebed; border-radius: 16px;">
            <tr>
              <td style="padding: 24px; font-size: 16px; vertical-align: top;" valign="top">
                {{.Content}}
              </td>
            </tr>
          </table>
          <p style="color: #9a9ea6; font-size: 14px; text-align: center; margin-top: 16px;">{{.FooterText}}</p>
        </td>
      </tr>
    </table>
  </body>
</html>`))

func GetEmailLayout(props EmailLayoutProps) string {
	title := props.Title
	if title == "" {
		title = "Conversation summary"
	}
	footerText := props.FooterText
	if footerText == "" {
		footerText = "Sent automatically after your call."
	}

	templateData := emailTemplateData{
		Preheader:  props.Preheader,
		Title:      title,
		Content:    template.HTML(props.Content), // Convert to safe HTML type
		FooterText: footerText,
	}

	var buf bytes.Buffer
	if err := emailLayoutTemplate.Execute(&buf, templateData); err != nil {
		log.Printf("Error executing email layout template: %v", err)
		return "<html><body>Template execution error</body></html>"
	}

	return buf.String()
}
