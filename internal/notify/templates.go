package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

const confirmationSubject = "Thank you for your interest in AI Fee Proposal Generator"

type confirmationView struct {
	FirstName      string
	CompanyMention string
	AppURL         string
	Year           int
}

type adminView struct {
	Name         string
	Email        string
	Company      string
	MessageLines []string
	Message      string
	Submitted    string
	LeadID       string
	AppURL       string
}

var confirmationHTML = htmltemplate.Must(htmltemplate.New("confirmation").Parse(`<!DOCTYPE html>
<html>
  <head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>
  <body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; line-height: 1.6; color: #334155; background-color: #f8fafc; margin: 0; padding: 0;">
    <div style="max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 8px;">
      <div style="padding: 40px 30px; text-align: center; border-bottom: 3px solid #d1345f;">
        <img src="{{.AppURL}}/alfredai.png" alt="AlfredAI Logo" style="max-width: 180px;" />
      </div>
      <div style="padding: 40px 30px;">
        <p style="font-size: 18px; font-weight: 600; color: #1e293b;">Hi {{.FirstName}},</p>
        <p>Thank you for reaching out{{.CompanyMention}}! We received your message and one of our team members will get back to you within 24 hours.</p>
        <div style="background-color: #fef2f2; border-left: 4px solid #d1345f; padding: 20px 24px; margin: 24px 0;">
          <h3 style="margin: 0 0 12px 0; font-size: 16px;">Here's what you can expect:</h3>
          <ul>
            <li>Personalized demo of our AI Fee Proposal Generator</li>
            <li>Discussion of your specific needs and use cases</li>
            <li>Custom pricing options tailored to your firm</li>
          </ul>
        </div>
        <p>In the meantime, feel free to explore more about how our AI-powered solution can transform your proposal process and help you win more business.</p>
        <p style="margin-top: 24px;">Best regards,<br><strong>The AlfredAI Team</strong></p>
      </div>
      <div style="background-color: #f8fafc; padding: 30px; text-align: center; border-top: 1px solid #e2e8f0; font-size: 14px; color: #64748b;">
        <p>This email was sent because you submitted a contact form on <a href="https://alfredai.bot" style="color: #d1345f;">alfredai.bot</a></p>
        <p style="font-size: 12px;">&copy; {{.Year}} AlfredAI. All rights reserved.</p>
      </div>
    </div>
  </body>
</html>
`))

var confirmationText = texttemplate.Must(texttemplate.New("confirmation").Parse(`Hi {{.FirstName}},

Thank you for reaching out{{.CompanyMention}}! We received your message and one of our team members will get back to you within 24 hours.

Here's what you can expect:
- Personalized demo of our AI Fee Proposal Generator
- Discussion of your specific needs and use cases
- Custom pricing options tailored to your firm

In the meantime, feel free to explore more about how our AI-powered solution can transform your proposal process and help you win more business.

Best regards,
The AlfredAI Team

---
This email was sent because you submitted a contact form on alfredai.bot
(c) {{.Year}} AlfredAI. All rights reserved.
`))

var adminHTML = htmltemplate.Must(htmltemplate.New("admin").Parse(`<!DOCTYPE html>
<html>
  <head><meta charset="UTF-8"></head>
  <body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; line-height: 1.6; color: #334155; background-color: #f8fafc; padding: 20px;">
    <div style="max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 8px;">
      <div style="padding: 30px; text-align: center; border-bottom: 3px solid #d1345f;">
        <img src="{{.AppURL}}/alfredai.png" alt="AlfredAI Logo" style="max-width: 150px;" />
      </div>
      <div style="padding: 30px;">
        <h2 style="color: #1e293b; margin-top: 0;">New Lead Submission</h2>
        <p><strong>Name:</strong><br>{{.Name}}</p>
        <p><strong>Email:</strong><br><a href="mailto:{{.Email}}">{{.Email}}</a></p>
        <p><strong>Company:</strong><br>{{.Company}}</p>
        <p><strong>Message:</strong></p>
        <div style="background-color: #fef2f2; padding: 16px; border-left: 4px solid #d1345f;">{{range $i, $line := .MessageLines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</div>
        <p><strong>Submitted:</strong><br>{{.Submitted}}</p>
        <p style="font-size: 12px; color: #64748b;">Lead ID: {{.LeadID}}</p>
      </div>
    </div>
  </body>
</html>
`))

var adminText = texttemplate.Must(texttemplate.New("admin").Parse(`New Lead Submission

Name: {{.Name}}
Email: {{.Email}}
Company: {{.Company}}
Message:
{{.Message}}

Submitted: {{.Submitted}}
Lead ID: {{.LeadID}}
`))

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return name
	}
	return fields[0]
}

func renderConfirmation(contact LeadContact, appURL string, now time.Time) (EmailMessage, error) {
	view := confirmationView{
		FirstName: firstName(contact.Name),
		AppURL:    appURL,
		Year:      now.Year(),
	}
	if contact.Company != "" {
		view.CompanyMention = " at " + contact.Company
	}

	html, text, err := render(confirmationHTML, confirmationText, view)
	if err != nil {
		return EmailMessage{}, err
	}
	return EmailMessage{
		To:      contact.Email,
		ToName:  contact.Name,
		Subject: confirmationSubject,
		Body:    text,
		HTML:    html,
	}, nil
}

func adminSubject(contact LeadContact) string {
	subject := "New Lead: " + contact.Name
	if contact.Company != "" {
		subject += " from " + contact.Company
	}
	return subject
}

func renderAdmin(contact LeadContact, to, appURL string) (EmailMessage, error) {
	company := contact.Company
	if company == "" {
		company = "Not provided"
	}
	view := adminView{
		Name:         contact.Name,
		Email:        contact.Email,
		Company:      company,
		MessageLines: strings.Split(contact.Message, "\n"),
		Message:      contact.Message,
		Submitted:    contact.SubmittedAt.UTC().Format(time.RFC1123),
		LeadID:       contact.LeadID,
		AppURL:       appURL,
	}

	html, text, err := render(adminHTML, adminText, view)
	if err != nil {
		return EmailMessage{}, err
	}
	return EmailMessage{
		To:       to,
		FromName: "AlfredAI Leads",
		Subject:  adminSubject(contact),
		Body:     text,
		HTML:     html,
	}, nil
}

func render(h *htmltemplate.Template, t *texttemplate.Template, data any) (string, string, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := h.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("notify: render %s html: %w", h.Name(), err)
	}
	if err := t.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("notify: render %s text: %w", t.Name(), err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}
