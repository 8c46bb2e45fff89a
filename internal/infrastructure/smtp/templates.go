package smtp

import "html/template"

var otpTemplate = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; line-height: 1.6;">
  <h2>Verify Your Email</h2>
  {{if .Name}}<p>Hi {{.Name}},</p>{{end}}
  <p>Your One-Time Password (OTP) is:</p>
  <h1 style="letter-spacing: 4px;">{{.OTP}}</h1>
  <p>This OTP is valid for <strong>{{.ValidFor}}</strong>.</p>
  <p>If you did not request this, please ignore this email.</p>
  <br />
  <p>Team Unifiro</p>
</div>`))

var resetTemplate = template.Must(template.New("reset").Parse(`<div style="font-family: Arial, sans-serif; line-height: 1.6;">
  <h2>Reset Your Password</h2>
  {{if .Name}}<p>Hi {{.Name}},</p>{{end}}
  <p>We received a request to reset your Unifiro password. Use the link below to choose a new one:</p>
  <p><a href="{{.ResetLink}}">Reset password</a></p>
  <p>This link is valid for <strong>{{.ValidFor}}</strong> and can be used once.</p>
  <p>If you did not request this, please ignore this email.</p>
  <br />
  <p>Team Unifiro</p>
</div>`))
