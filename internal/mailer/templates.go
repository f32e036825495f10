package mailer

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Template names referenced by mail jobs.
const (
	TemplateVerifyEmailOTP   = "verify_email_otp.html"
	TemplatePasswordResetOTP = "password_reset_otp.html"
)

// Render executes the named template with the given data.
func Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
