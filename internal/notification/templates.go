package notification

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/pkg/errors"
)

// Kind selects the template of a notice
type Kind string

const (
	KindDistribution Kind = "distribution"
	KindUpdate       Kind = "update"
	KindReminder     Kind = "reminder"
)

// Message is a rendered email
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// layout holds the fixed wording of one kind of notice
type layout struct {
	Title           string
	Accent          htmltemplate.CSS
	Intro           string
	SectionsHeading string
	Button          string
	Footer          string
	WithCustomer    bool
	subject         string
}

var layouts = map[Kind]layout{
	KindDistribution: {
		Title:           "New BOQ Request",
		Accent:          "#2563eb",
		Intro:           "You have been invited to quote on a new Bill of Quantities (BOQ).",
		SectionsHeading: "Sections you can quote on:",
		Button:          "View BOQ Details",
		Footer:          "This is an automated notification from the Annix platform.",
		WithCustomer:    true,
		subject:         "New BOQ Request: {{.ProjectName}} ({{.BoqNumber}}) - Annix",
	},
	KindUpdate: {
		Title:           "BOQ Updated",
		Accent:          "#f59e0b",
		Intro:           "A Bill of Quantities (BOQ) you were invited to quote on has been updated by the customer.",
		SectionsHeading: "Sections available to you:",
		Button:          "View Updated BOQ",
		Footer:          "Please review the updated requirements and adjust your quotation if needed.",
		subject:         "BOQ Updated: {{.ProjectName}} ({{.BoqNumber}}) - Annix",
	},
	KindReminder: {
		Title:           "Quotation Reminder",
		Accent:          "#16a34a",
		Intro:           "A Bill of Quantities (BOQ) you were invited to quote on is still awaiting your response.",
		SectionsHeading: "Sections you can quote on:",
		Button:          "Open BOQ",
		Footer:          "You asked to be reminded about this BOQ. The reminder can be changed from the supplier portal.",
		subject:         "Reminder: {{.ProjectName}} ({{.BoqNumber}}) - Annix",
	},
}

// templateData is what the body templates see
type templateData struct {
	Notice
	Layout layout
	Link   string
}

const htmlBody = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Layout.Title}} - Annix</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h1 style="color: {{.Layout.Accent}};">{{.Layout.Title}}</h1>
<p>Hello {{.SupplierName}},</p>
<p>{{.Layout.Intro}}</p>
<div style="background-color: #f3f4f6; border-left: 4px solid {{.Layout.Accent}}; padding: 15px; margin: 20px 0;">
<strong>Project Details:</strong>
<p style="margin: 5px 0 0 0;"><strong>Project:</strong> {{.ProjectName}}<br/><strong>BOQ Number:</strong> {{.BoqNumber}}</p>
</div>
<p><strong>{{.Layout.SectionsHeading}}</strong></p>
<ul>{{range .SectionTitles}}<li>{{.}}</li>{{end}}</ul>
{{if and .Layout.WithCustomer .Customer}}{{with .Customer}}<div style="background-color: #f0f9ff; border-left: 4px solid #2563eb; padding: 15px; margin: 20px 0;">
<strong>Customer Details:</strong>
<p style="margin: 5px 0 0 0;">{{if .Company}}<strong>Company:</strong> {{.Company}}<br/>{{end}}<strong>Contact:</strong> {{.Name}}<br/><strong>Email:</strong> {{.Email}}{{if .Phone}}<br/><strong>Phone:</strong> {{.Phone}}{{end}}</p>
</div>
{{end}}{{end}}<p style="margin: 30px 0;"><a href="{{.Link}}" style="background-color: {{.Layout.Accent}}; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">{{.Layout.Button}}</a></p>
<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
<p style="color: #999; font-size: 12px;">{{.Layout.Footer}}</p>
</div>
</body>
</html>
`

const textBody = `{{.Layout.Title}}

Hello {{.SupplierName}},

{{.Layout.Intro}}

Project: {{.ProjectName}}
BOQ Number: {{.BoqNumber}}

{{.Layout.SectionsHeading}}
{{range .SectionTitles}}- {{.}}
{{end}}
{{if and .Layout.WithCustomer .Customer}}{{with .Customer}}Customer: {{if .Company}}{{.Company}}{{else}}{{.Name}}{{end}}

{{end}}{{end}}View the BOQ at: {{.Link}}
`

var (
	htmlTemplate = htmltemplate.Must(htmltemplate.New("html").Parse(htmlBody))
	textTemplate = texttemplate.Must(texttemplate.New("text").Parse(textBody))
	subjects     = mustParseSubjects()
)

func mustParseSubjects() map[Kind]*texttemplate.Template {
	out := make(map[Kind]*texttemplate.Template, len(layouts))
	for kind, l := range layouts {
		out[kind] = texttemplate.Must(texttemplate.New(string(kind)).Parse(l.subject))
	}
	return out
}

// Render builds the email for a notice. link is the supplier portal URL.
func Render(kind Kind, notice Notice, link string) (Message, error) {
	l, ok := layouts[kind]
	if !ok {
		return Message{}, errors.Errorf("unknown notice kind %q", kind)
	}
	data := templateData{Notice: notice, Layout: l, Link: link}

	var subject, text, html bytes.Buffer
	if err := subjects[kind].Execute(&subject, notice); err != nil {
		return Message{}, errors.Wrap(err, "failed to render subject")
	}
	if err := textTemplate.Execute(&text, data); err != nil {
		return Message{}, errors.Wrap(err, "failed to render text body")
	}
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return Message{}, errors.Wrap(err, "failed to render html body")
	}

	return Message{
		Subject: subject.String(),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
