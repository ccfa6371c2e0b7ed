package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

const (
	SubjectVerification    = "Email Verification OTP for Mould Connect"
	SubjectNewVerification = "New Email Verification OTP for Mould Connect"
)

var otpTemplate = template.Must(template.New("otp").Parse(
	`<p>Your {{if .Resend}}new {{end}}One-Time Password (OTP) for Mould Connect is: <strong>{{.Code}}</strong></p>
<p>This OTP is valid for {{.Minutes}} minutes. Do not share it with anyone.</p>`))

// OTPMessage renders the subject and HTML body for a verification code.
// resend selects the wording used when a replacement code is issued.
func OTPMessage(code string, validMinutes int, resend bool) (subject, body string, err error) {
	var buf bytes.Buffer
	data := struct {
		Code    string
		Minutes int
		Resend  bool
	}{Code: code, Minutes: validMinutes, Resend: resend}
	if err := otpTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render otp email: %w", err)
	}

	subject = SubjectVerification
	if resend {
		subject = SubjectNewVerification
	}
	return subject, buf.String(), nil
}
