package templates

import (
	"bytes"
	"html/template"
	"log"
)

// TranscriptLine is one utterance in the summary transcript.
type TranscriptLine struct {
	Speaker string
	Text    string
}

// AppointmentProps describes the booking made during the call, if any.
type AppointmentProps struct {
	Title string
	When  string
	Link  string
}

type SummaryProps struct {
	BusinessName string
	CallerName   string
	CallerEmail  string
	Appointment  *AppointmentProps
	Transcript   []TranscriptLine
}

type summaryTemplateData struct {
	SummaryProps
	Button template.HTML
}

var summaryTemplate = template.Must(template.New("summary").Parse(`
<h2 style="font-size: 20px; margin: 0 0 16px;">Thanks for calling {{.BusinessName}}</h2>
<p style="margin: 0 0 16px;">Hi {{if .CallerName}}{{.CallerName}}{{else}}there{{end}}, here is a summary of your conversation.</p>
{{- with .Appointment}}
<p style="margin: 0 0 8px;"><strong>Appointment booked:</strong> {{.Title}}</p>
<p style="margin: 0 0 16px;">{{.When}}</p>
{{- end}}
{{.Button}}
<table role="presentation" border="0" cellpadding="0" cellspacing="0" style="width: 100%; border-top: 1px solid #eaebed;">
{{- range .Transcript}}
  <tr>
    <td style="padding: 8px 8px 8px 0; color: #6b7280; font-size: 14px; vertical-align: top; white-space: nowrap;">{{.Speaker}}</td>
    <td style="padding: 8px 0; font-size: 14px; vertical-align: top;">{{.Text}}</td>
  </tr>
{{- end}}
</table>`))

// GetSummaryEmailContent renders the body placed inside GetEmailLayout.
func GetSummaryEmailContent(props SummaryProps) string {
	data := summaryTemplateData{SummaryProps: props}
	if props.Appointment != nil && props.Appointment.Link != "" {
		data.Button = template.HTML(GetButton(ButtonProps{Text: "View appointment", URL: props.Appointment.Link}))
	}
	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, data); err != nil {
		log.Printf("Error executing summary email template: %v", err)
		return ""
	}
	return buf.String()
}
