package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/metspa/woo-ai-customer-service/internal/config"
	"github.com/metspa/woo-ai-customer-service/internal/model"
	"github.com/metspa/woo-ai-customer-service/internal/repository"
	"github.com/metspa/woo-ai-customer-service/pkg/llm"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
)

// ChatReply 是一次消息往返的结果。
// Success 为 false 表示 LLM 调用失败、Message 是兜底话术，
// 但消息仍已计数并写入转录。
type ChatReply struct {
	Success           bool
	Message           string
	MessagesRemaining int
}

// ChatService 处理会话内的消息往返：限额校验、LLM 调用、
// 转录落盘、通知与滑动 TTL 续期。
type ChatService interface {
	HandleMessage(ctx context.Context, sessionID, message, imageURL string) (*ChatReply, error)
}

type chatService struct {
	chatCfg     config.ChatConfig
	sessionRepo repository.SessionRepository
	leadRepo    repository.LeadRepository
	convSvc     ConversationService
	llmClient   llm.Client
	notify      NotificationService
	hub         *EventHub
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	chatCfg config.ChatConfig,
	sessionRepo repository.SessionRepository,
	leadRepo repository.LeadRepository,
	convSvc ConversationService,
	llmClient llm.Client,
	notify NotificationService,
	hub *EventHub,
) ChatService {
	return &chatService{
		chatCfg:     chatCfg,
		sessionRepo: sessionRepo,
		leadRepo:    leadRepo,
		convSvc:     convSvc,
		llmClient:   llmClient,
		notify:      notify,
		hub:         hub,
	}
}

// HandleMessage 处理一条用户消息。
// 校验失败（过期/超限/超长）时不改动任何会话状态；
// 校验通过后无论 LLM 成功与否都计数、存档并续期 TTL。
func (s *chatService) HandleMessage(ctx context.Context, sessionID, message, imageURL string) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" && imageURL == "" {
		return nil, &ValidationError{Field: "message", Message: "Message cannot be empty"}
	}

	session, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		if err == repository.ErrSessionNotFound {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if session.MessageCount >= s.chatCfg.MaxMessages {
		return nil, ErrRateLimited
	}
	if len(message) > s.chatCfg.MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	// 图片以文本标记注入 LLM 上下文，原始 URL 单独入转录
	llmContent := message
	if imageURL != "" {
		if llmContent != "" {
			llmContent += "\n\n"
		}
		llmContent += "[Customer attached an image: " + imageURL + "]"
	}

	session.Messages = append(session.Messages, model.SessionMessage{Role: "user", Content: llmContent})
	reply := s.llmClient.SendMessage(ctx, toLLMMessages(session.Messages), session.ContextBlock)
	session.Messages = append(session.Messages, model.SessionMessage{Role: "assistant", Content: reply.Text})
	session.MessageCount++

	s.archive(ctx, sessionID, message, imageURL, reply.Text)

	lead := &model.Lead{
		ID:        session.LeadID,
		FirstName: session.FirstName,
		LastName:  session.LastName,
		Email:     session.Email,
		Phone:     session.Phone,
	}
	s.notify.NotifyNewMessage(lead, sessionID, message, reply.Text)
	if err := s.leadRepo.UpdateLastContact(session.LeadID); err != nil {
		log.Errorf("刷新线索 %d 的最近联系时间失败: %v", session.LeadID, err)
	}

	s.hub.Publish(ChatEvent{
		Type: "user_message", SessionID: sessionID,
		CustomerName: lead.FullName(), Content: message,
	})
	s.hub.Publish(ChatEvent{
		Type: "assistant_message", SessionID: sessionID,
		CustomerName: lead.FullName(), Content: reply.Text,
	})

	// Save 重置 TTL，实现滑动过期
	if err := s.sessionRepo.Save(ctx, sessionID, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return &ChatReply{
		Success:           reply.Success,
		Message:           reply.Text,
		MessagesRemaining: s.chatCfg.MaxMessages - session.MessageCount,
	}, nil
}

// archive 把这轮往返写入持久化转录。转录失败只记日志，
// 不阻断已经生成的回复。
func (s *chatService) archive(ctx context.Context, sessionID, message, imageURL, replyText string) {
	userMsg := model.ConversationMessage{Role: "user", Content: message, ImageURL: imageURL}
	if err := s.convSvc.Append(ctx, sessionID, userMsg); err != nil {
		log.Errorf("存档用户消息失败: %v", err)
	}
	if err := s.convSvc.Append(ctx, sessionID, model.ConversationMessage{Role: "assistant", Content: replyText}); err != nil {
		log.Errorf("存档助手回复失败: %v", err)
	}
}

func toLLMMessages(messages []model.SessionMessage) []llm.Message {
	out := make([]llm.Message, len(messages))
	for i, m := range messages {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
