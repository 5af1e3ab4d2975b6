package notify

import (
	"bytes"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
)

type emailData struct {
	RecipientName string
	FileName      string
	Link          string
	Reminder      bool
}

const subjectTmpl = `{{if .Reminder}}Reminder{{else}}Action required{{end}}: please review {{.FileName}}`

const textTmpl = `Hello {{.RecipientName}},

{{if .Reminder}}This is a reminder that "{{.FileName}}" is still waiting for your consent.{{else}}You have been asked to review and consent to "{{.FileName}}".{{end}}

Open the link below to read the document and sign:
{{.Link}}

This link is personal to you. Please do not forward it.
`

const htmlTmpl = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2933;">
  <p>Hello {{.RecipientName}},</p>
  {{if .Reminder}}<p>This is a reminder that <strong>{{.FileName}}</strong> is still waiting for your consent.</p>{{else}}<p>You have been asked to review and consent to <strong>{{.FileName}}</strong>.</p>{{end}}
  <p><a href="{{.Link}}" style="display:inline-block;padding:10px 18px;background:#2563eb;color:#ffffff;text-decoration:none;border-radius:4px;">Review and sign</a></p>
  <p style="font-size:12px;color:#52606d;">This link is personal to you. Please do not forward it.</p>
</body>
</html>
`

var (
	subjectTemplate = texttemplate.Must(texttemplate.New("subject").Parse(subjectTmpl))
	textTemplate    = texttemplate.Must(texttemplate.New("text").Parse(textTmpl))
	htmlTemplate    = htmltemplate.Must(htmltemplate.New("html").Parse(htmlTmpl))
)

// ConsentURL builds the public link for a token: <base>/consent?token=<token>.
func ConsentURL(base, token string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/consent?token=" + url.QueryEscape(token)
}

func render(to string, data emailData) (Message, error) {
	if strings.TrimSpace(data.RecipientName) == "" {
		data.RecipientName = "there"
	}
	var subject, text, html bytes.Buffer
	if err := subjectTemplate.Execute(&subject, data); err != nil {
		return Message{}, err
	}
	if err := textTemplate.Execute(&text, data); err != nil {
		return Message{}, err
	}
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: strings.TrimSpace(subject.String()),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
