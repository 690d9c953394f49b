package smtp

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var otpTmpl = template.Must(template.New("otp").Parse(`<html>
  <body>
    <h2>Welcome to {{.AppName}}!</h2>
    <p>Your verification code is:</p>
    <h1 style="color: #4F46E5; letter-spacing: 5px;">{{.Code}}</h1>
    <p>This code will expire in {{.Minutes}} minutes.</p>
  </body>
</html>
`))

var verifiedTmpl = template.Must(template.New("verified").Parse(`<html>
  <body>
    <h2>{{.AppName}}</h2>
    <p>Someone tried to register with this email address, but it is already verified.</p>
    <p>You can simply log in. If this wasn't you, no action is needed.</p>
  </body>
</html>
`))

// OTPMessage renders the verification code email.
func OTPMessage(appName, code string, ttl time.Duration) (subject, body string, err error) {
	var buf bytes.Buffer
	err = otpTmpl.Execute(&buf, struct {
		AppName string
		Code    string
		Minutes int
	}{appName, code, int(ttl.Minutes())})
	if err != nil {
		return "", "", fmt.Errorf("render otp email: %w", err)
	}
	return "Your Verification Code - " + appName, buf.String(), nil
}

// AlreadyVerifiedMessage renders the notice sent when a verified address registers again.
func AlreadyVerifiedMessage(appName string) (subject, body string, err error) {
	var buf bytes.Buffer
	if err = verifiedTmpl.Execute(&buf, struct{ AppName string }{appName}); err != nil {
		return "", "", fmt.Errorf("render verified notice: %w", err)
	}
	return "Your " + appName + " account is already verified", buf.String(), nil
}
