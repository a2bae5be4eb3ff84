package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Sender delivers HTML mail over SMTP. Without a host it only logs.
type Sender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func NewSender(host, port, username, password, from string) *Sender {
	return &Sender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
	}
}

const layout = `
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; border-radius: 5px; }
        .header { background-color: #0b7a75; color: white; padding: 10px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { padding: 20px; }
        .button { display: inline-block; padding: 10px 20px; background-color: #f2a541; color: black; text-decoration: none; border-radius: 4px; font-weight: bold; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>{{.Title}}</h1></div>
        <div class="content">
            <p>Hola {{.Name}},</p>
            <p>{{.Text}}</p>
            <p style="text-align: center;"><a href="{{.Link}}" class="button">{{.Action}}</a></p>
        </div>
    </div>
</body>
</html>
`

var page = template.Must(template.New("page").Parse(layout))

type pageData struct {
	Title  string
	Name   string
	Text   string
	Action string
	Link   string
}

// SendConfirmation sends the account confirmation link
func (s *Sender) SendConfirmation(ctx context.Context, to, name, link string) error {
	return s.send(to, "Confirma tu correo", pageData{
		Title:  "Bienvenido",
		Name:   name,
		Text:   "Gracias por registrarte. Confirma tu correo para empezar a viajar.",
		Action: "Confirmar correo",
		Link:   link,
	})
}

// SendInvite invites to to join a chat room
func (s *Sender) SendInvite(ctx context.Context, to, inviterName, roomName, link string) error {
	return s.send(to, "Te invitaron a un viaje", pageData{
		Title:  roomName,
		Name:   to,
		Text:   fmt.Sprintf("%s te invitó a unirte a la conversación %q.", inviterName, roomName),
		Action: "Ver invitación",
		Link:   link,
	})
}

func (s *Sender) send(to, subject string, data pageData) error {
	var body bytes.Buffer
	if err := page.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	if s.Host == "" {
		log.Info().Str("to", to).Str("subject", subject).Str("link", data.Link).Msg("SMTP not configured, email not sent")
		return nil
	}

	headers := [][2]string{
		{"From", s.From},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=\"UTF-8\""},
	}
	var message strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&message, "%s: %s\r\n", h[0], h[1])
	}
	message.WriteString("\r\n")
	message.Write(body.Bytes())

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	addr := fmt.Sprintf("%s:%s", s.Host, s.Port)
	if err := smtp.SendMail(addr, auth, s.From, []string{to}, []byte(message.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
