// Package mailer 封装了 SMTP 邮件发送。
package mailer

import (
	"gopkg.in/gomail.v2"

	"github.com/metspa/woo-ai-customer-service/internal/config"
)

// Sender 发送一封 HTML 邮件。抽成接口便于在测试中替换。
type Sender interface {
	Send(to []string, subject, htmlBody string) error
}

type smtpSender struct {
	cfg config.NotifyConfig
}

// NewSender 创建一个基于 gomail 的 SMTP 发送器。
func NewSender(cfg config.NotifyConfig) Sender {
	return &smtpSender{cfg: cfg}
}

// Send 逐封发送，调用方负责决定收件人列表。
func (s *smtpSender) Send(to []string, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromAddress)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPassword)
	return d.DialAndSend(m)
}
