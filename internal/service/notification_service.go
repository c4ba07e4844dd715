package service

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/metspa/woo-ai-customer-service/internal/config"
	"github.com/metspa/woo-ai-customer-service/internal/model"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
	"github.com/metspa/woo-ai-customer-service/pkg/mailer"
)

// NotificationService 在会话开始和新消息到达时给客服发邮件提醒。
// 通知是尽力而为的：发信失败只记日志，绝不影响聊天主流程。
type NotificationService interface {
	NotifyConversationStarted(lead *model.Lead, sessionID string)
	NotifyNewMessage(lead *model.Lead, sessionID, userMessage, aiReply string)
}

type notificationService struct {
	cfg     config.NotifyConfig
	sender  mailer.Sender
	started *template.Template
	message *template.Template
}

var startedTemplate = template.Must(template.New("started").Parse(`
<h2>New Chat Conversation Started</h2>
<p>A visitor just started a chat on your store.</p>
<table cellpadding="4">
  <tr><td><strong>Name:</strong></td><td>{{.Name}}</td></tr>
  <tr><td><strong>Email:</strong></td><td>{{.Email}}</td></tr>
  {{if .Phone}}<tr><td><strong>Phone:</strong></td><td>{{.Phone}}</td></tr>{{end}}
  <tr><td><strong>Session:</strong></td><td>{{.SessionID}}</td></tr>
  <tr><td><strong>Started:</strong></td><td>{{.When}}</td></tr>
</table>
`))

var messageTemplate = template.Must(template.New("message").Parse(`
<h2>New Chat Message</h2>
<p><strong>{{.Name}}</strong> ({{.Email}}) wrote:</p>
<blockquote>{{.UserMessage}}</blockquote>
<p><strong>Assistant replied:</strong></p>
<blockquote>{{.AIReply}}</blockquote>
<p>Session: {{.SessionID}}</p>
`))

// NewNotificationService 创建一个新的 NotificationService 实例。
func NewNotificationService(cfg config.NotifyConfig, sender mailer.Sender) NotificationService {
	return &notificationService{
		cfg:     cfg,
		sender:  sender,
		started: startedTemplate,
		message: messageTemplate,
	}
}

// recipients 返回通知收件人列表，未配置时退回管理员邮箱。
func (s *notificationService) recipients() []string {
	if len(s.cfg.Recipients) > 0 {
		return s.cfg.Recipients
	}
	if s.cfg.AdminEmail != "" {
		return []string{s.cfg.AdminEmail}
	}
	return nil
}

// NotifyConversationStarted 发送“新会话开始”提醒。
func (s *notificationService) NotifyConversationStarted(lead *model.Lead, sessionID string) {
	if !s.cfg.Enabled || !s.cfg.NotifyOnStart {
		return
	}
	to := s.recipients()
	if len(to) == 0 {
		return
	}

	var body bytes.Buffer
	data := map[string]string{
		"Name":      lead.FullName(),
		"Email":     lead.Email,
		"Phone":     lead.Phone,
		"SessionID": sessionID,
		"When":      time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := s.started.Execute(&body, data); err != nil {
		log.Errorf("渲染开聊通知模板失败: %v", err)
		return
	}

	subject := fmt.Sprintf("New chat started by %s", lead.FullName())
	if err := s.sender.Send(to, subject, body.String()); err != nil {
		log.Errorf("发送开聊通知失败: %v", err)
	}
}

// NotifyNewMessage 发送“新消息”提醒，包含用户消息和 AI 回复。
func (s *notificationService) NotifyNewMessage(lead *model.Lead, sessionID, userMessage, aiReply string) {
	if !s.cfg.Enabled || !s.cfg.NotifyOnMessage {
		return
	}
	to := s.recipients()
	if len(to) == 0 {
		return
	}

	var body bytes.Buffer
	data := map[string]string{
		"Name":        lead.FullName(),
		"Email":       lead.Email,
		"SessionID":   sessionID,
		"UserMessage": userMessage,
		"AIReply":     aiReply,
	}
	if err := s.message.Execute(&body, data); err != nil {
		log.Errorf("渲染新消息通知模板失败: %v", err)
		return
	}

	subject := fmt.Sprintf("New chat message from %s", lead.FullName())
	if err := s.sender.Send(to, subject, body.String()); err != nil {
		log.Errorf("发送新消息通知失败: %v", err)
	}
}
