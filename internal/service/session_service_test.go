package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metspa/woo-ai-customer-service/internal/model"
	"github.com/metspa/woo-ai-customer-service/internal/repository"
	"github.com/metspa/woo-ai-customer-service/pkg/token"
)

type sessionFixture struct {
	svc         SessionService
	sessionRepo repository.SessionRepository
	leadRepo    *fakeLeadRepo
	convSvc     *fakeConvService
	notifier    *fakeNotifier
	orderRepo   *fakeOrderRepo
	nonce       *token.SessionNonce
}

func newSessionFixture(t *testing.T, phoneRequired bool, orderRepo *fakeOrderRepo) *sessionFixture {
	t.Helper()
	if orderRepo == nil {
		orderRepo = &fakeOrderRepo{}
	}
	f := &sessionFixture{
		sessionRepo: repository.NewMemorySessionRepository(2 * time.Hour),
		leadRepo:    newFakeLeadRepo(),
		convSvc:     newFakeConvService(),
		notifier:    &fakeNotifier{},
		orderRepo:   orderRepo,
		nonce:       token.NewSessionNonce("test-secret"),
	}
	cfg := testChatConfig()
	cfg.PhoneRequired = phoneRequired
	f.svc = NewSessionService(cfg, f.leadRepo, f.sessionRepo,
		NewContextBuilder(f.orderRepo), f.convSvc, f.notifier, f.nonce)
	return f
}

func validStart() StartRequest {
	return StartRequest{
		FirstName: "Ana",
		LastName:  "Lopez",
		Email:     "ana@example.com",
		Phone:     "555-123-4567",
	}
}

func TestStartSessionSuccess(t *testing.T) {
	f := newSessionFixture(t, false, nil)

	res, err := f.svc.Start(context.Background(), validStart())
	require.NoError(t, err)

	assert.NotEmpty(t, res.SessionID)
	assert.True(t, f.nonce.Verify(res.SessionID, res.Nonce))
	assert.Contains(t, res.WelcomeMessage, "Hi Ana!")

	// 线索已按邮箱落库
	lead, err := f.leadRepo.FindByEmail("ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, lead.SessionID)

	// 会话缓存可读，上下文已预组装
	session, err := f.sessionRepo.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, session.LeadID)
	assert.Contains(t, session.ContextBlock, "CUSTOMER INFORMATION:")
	assert.Equal(t, 0, session.MessageCount)

	// 转录已开档，通知已发出
	assert.Equal(t, []string{res.SessionID}, f.convSvc.started)
	assert.Equal(t, 1, f.notifier.startedCount)
}

func TestStartSessionWelcomeWithOrders(t *testing.T) {
	f := newSessionFixture(t, false, &fakeOrderRepo{guestOrder: []model.Order{sampleOrder()}})

	res, err := f.svc.Start(context.Background(), validStart())
	require.NoError(t, err)

	assert.Contains(t, res.WelcomeMessage,
		"I can see you have 1 recent order(s). Your most recent order #1042 is currently: Processing.")
}

func TestStartSessionValidation(t *testing.T) {
	f := newSessionFixture(t, false, nil)

	cases := []struct {
		name  string
		mod   func(*StartRequest)
		field string
	}{
		{"missing first name", func(r *StartRequest) { r.FirstName = "  " }, "first_name"},
		{"missing last name", func(r *StartRequest) { r.LastName = "" }, "last_name"},
		{"missing email", func(r *StartRequest) { r.Email = "" }, "email"},
		{"malformed email", func(r *StartRequest) { r.Email = "not-an-email" }, "email"},
		{"email without tld", func(r *StartRequest) { r.Email = "a@b" }, "email"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := validStart()
			c.mod(&req)
			_, err := f.svc.Start(context.Background(), req)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, c.field, vErr.Field)
		})
	}

	// 校验失败不落线索、不开转录
	assert.Empty(t, f.convSvc.started)
	assert.Equal(t, 0, f.notifier.startedCount)
}

func TestStartSessionPhoneRequired(t *testing.T) {
	f := newSessionFixture(t, true, nil)

	req := validStart()
	req.Phone = ""
	_, err := f.svc.Start(context.Background(), req)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "phone", vErr.Field)
}

func TestStartSessionEmailNormalized(t *testing.T) {
	f := newSessionFixture(t, false, nil)

	req := validStart()
	req.Email = "Ana@Example.COM"
	_, err := f.svc.Start(context.Background(), req)
	require.NoError(t, err)

	_, err = f.leadRepo.FindByEmail("ana@example.com")
	assert.NoError(t, err)
}

func TestStartSessionReturningLeadReused(t *testing.T) {
	f := newSessionFixture(t, false, nil)

	first, err := f.svc.Start(context.Background(), validStart())
	require.NoError(t, err)
	second, err := f.svc.Start(context.Background(), validStart())
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	// 同邮箱复用同一条线索，session_id 指向最新会话
	lead, err := f.leadRepo.FindByEmail("ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint(1), lead.ID)
	assert.Equal(t, second.SessionID, lead.SessionID)
}

func TestEndSession(t *testing.T) {
	f := newSessionFixture(t, false, nil)

	res, err := f.svc.Start(context.Background(), validStart())
	require.NoError(t, err)

	require.NoError(t, f.svc.End(context.Background(), res.SessionID))
	_, err = f.sessionRepo.Get(context.Background(), res.SessionID)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}
