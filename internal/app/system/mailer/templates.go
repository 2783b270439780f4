// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// InvitationEmailData holds data for the pool invitation templates.
type InvitationEmailData struct {
	SiteName   string
	PoolName   string
	Topic      string
	AcceptLink string
	ExpiresOn  string // e.g. "Mon, 11 May 2026"
}

var invitationHTML = template.Must(template.New("invitation").Parse(invitationHTMLTemplate))

// BuildInvitationEmail creates an invitation email with both HTML and text bodies.
func BuildInvitationEmail(to string, data InvitationEmailData) Email {
	return Email{
		To:       to,
		Subject:  fmt.Sprintf("You're invited to join %s on %s", data.PoolName, data.SiteName),
		TextBody: buildInvitationText(data),
		HTMLBody: buildInvitationHTML(data),
	}
}

func buildInvitationText(data InvitationEmailData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You have been invited to join the circle pool %q on %s.\n\n", data.PoolName, data.SiteName)
	if data.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n\n", data.Topic)
	}
	b.WriteString("Accept or decline here:\n")
	b.WriteString(data.AcceptLink + "\n\n")
	fmt.Fprintf(&b, "This invitation expires on %s.\n\n", data.ExpiresOn)
	b.WriteString("If you were not expecting this invitation, you can safely ignore this email.\n")
	return b.String()
}

func buildInvitationHTML(data InvitationEmailData) string {
	var buf bytes.Buffer
	_ = invitationHTML.Execute(&buf, data)
	return buf.String()
}

const invitationHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Circle Invitation</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 22px; font-weight: 600; color: #0f766e;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 16px; font-size: 16px; color: #374151; line-height: 1.5;">
                You have been invited to join <strong>{{.PoolName}}</strong>.
              </p>
              {{if .Topic}}<p style="margin: 0 0 24px; font-size: 14px; color: #6b7280;">Topic: {{.Topic}}</p>{{end}}
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.AcceptLink}}" style="display: inline-block; padding: 14px 32px; background-color: #0f766e; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">
                      View Invitation
                    </a>
                  </td>
                </tr>
              </table>
              <p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">
                This invitation expires on {{.ExpiresOn}}.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
