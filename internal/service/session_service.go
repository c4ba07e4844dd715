package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/metspa/woo-ai-customer-service/internal/config"
	"github.com/metspa/woo-ai-customer-service/internal/model"
	"github.com/metspa/woo-ai-customer-service/internal/repository"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
	"github.com/metspa/woo-ai-customer-service/pkg/token"
)

// StartRequest 是建会请求的业务入参。
type StartRequest struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// StartResult 是成功建会后的回包：会话 ID、防伪令牌和欢迎语。
type StartResult struct {
	SessionID      string
	Nonce          string
	WelcomeMessage string
	HasOrders      bool
}

// SessionService 负责会话的建立与销毁：校验访客信息、落线索、
// 组装订单上下文、开转录、发通知，并写入带 TTL 的会话缓存。
type SessionService interface {
	Start(ctx context.Context, req StartRequest) (*StartResult, error)
	End(ctx context.Context, sessionID string) error
}

type sessionService struct {
	chatCfg     config.ChatConfig
	leadRepo    repository.LeadRepository
	sessionRepo repository.SessionRepository
	contextBld  ContextBuilder
	convSvc     ConversationService
	notify      NotificationService
	nonce       *token.SessionNonce
}

// NewSessionService 创建一个新的 SessionService 实例。
func NewSessionService(
	chatCfg config.ChatConfig,
	leadRepo repository.LeadRepository,
	sessionRepo repository.SessionRepository,
	contextBld ContextBuilder,
	convSvc ConversationService,
	notify NotificationService,
	nonce *token.SessionNonce,
) SessionService {
	return &sessionService{
		chatCfg:     chatCfg,
		leadRepo:    leadRepo,
		sessionRepo: sessionRepo,
		contextBld:  contextBld,
		convSvc:     convSvc,
		notify:      notify,
		nonce:       nonce,
	}
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// validate 校验建会请求，失败时返回字段级的 ValidationError。
func (s *sessionService) validate(req *StartRequest) error {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	if req.FirstName == "" {
		return &ValidationError{Field: "first_name", Message: "First name is required"}
	}
	if len(req.FirstName) > 100 {
		return &ValidationError{Field: "first_name", Message: "First name is too long"}
	}
	if req.LastName == "" {
		return &ValidationError{Field: "last_name", Message: "Last name is required"}
	}
	if len(req.LastName) > 100 {
		return &ValidationError{Field: "last_name", Message: "Last name is too long"}
	}
	if req.Email == "" {
		return &ValidationError{Field: "email", Message: "Email is required"}
	}
	if !emailPattern.MatchString(req.Email) {
		return &ValidationError{Field: "email", Message: "Please enter a valid email address"}
	}
	if s.chatCfg.PhoneRequired && req.Phone == "" {
		return &ValidationError{Field: "phone", Message: "Phone number is required"}
	}
	return nil
}

// Start 建立一次新的聊天会话。
func (s *sessionService) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()

	lead := &model.Lead{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     strings.ToLower(req.Email),
		Phone:     req.Phone,
		SessionID: sessionID,
	}
	leadID, err := s.leadRepo.UpsertByEmail(lead)
	if err != nil {
		return nil, fmt.Errorf("failed to save lead: %w", err)
	}
	lead.ID = leadID

	// 订单上下文在建会时组装一次，随会话缓存复用
	cc := s.contextBld.Build(lead)
	contextBlock := cc.Format()

	if _, err := s.convSvc.Start(sessionID, lead); err != nil {
		return nil, fmt.Errorf("failed to start conversation log: %w", err)
	}

	session := &model.ChatSession{
		LeadID:       leadID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        lead.Email,
		Phone:        req.Phone,
		ContextBlock: contextBlock,
		Messages:     []model.SessionMessage{},
		MessageCount: 0,
		StartedAt:    time.Now(),
	}
	if err := s.sessionRepo.Create(ctx, sessionID, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.notify.NotifyConversationStarted(lead, sessionID)

	log.Infow("聊天会话已建立",
		"session_id", sessionID,
		"lead_id", leadID,
		"returning", cc.IsReturning,
		"orders", len(cc.Orders),
	)

	return &StartResult{
		SessionID:      sessionID,
		Nonce:          s.nonce.Create(sessionID),
		WelcomeMessage: s.welcomeMessage(req, cc),
		HasOrders:      len(cc.Orders) > 0,
	}, nil
}

// welcomeMessage 渲染欢迎语模板，有历史订单时追加最近订单状态。
func (s *sessionService) welcomeMessage(req StartRequest, cc *CustomerContext) string {
	msg := s.chatCfg.WelcomeMessage
	msg = strings.ReplaceAll(msg, "{first_name}", req.FirstName)
	msg = strings.ReplaceAll(msg, "{last_name}", req.LastName)
	msg = strings.ReplaceAll(msg, "{email}", req.Email)

	if len(cc.Orders) > 0 {
		latest := cc.Orders[0]
		msg += fmt.Sprintf(" I can see you have %d recent order(s). Your most recent order #%s is currently: %s.",
			len(cc.Orders), latest.OrderNumber, latest.Status)
	}
	return msg
}

// End 主动销毁会话缓存。转录不受影响。
func (s *sessionService) End(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Delete(ctx, sessionID)
}
