// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/metspa/woo-ai-customer-service/internal/service"
	"github.com/metspa/woo-ai-customer-service/pkg/llm"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
)

// AdminHandler 负责客服后台的会话与线索管理接口。
type AdminHandler struct {
	convService service.ConversationService
	leadService service.LeadService
	llmClient   llm.Client
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(
	convService service.ConversationService,
	leadService service.LeadService,
	llmClient llm.Client,
) *AdminHandler {
	return &AdminHandler{
		convService: convService,
		leadService: leadService,
		llmClient:   llmClient,
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 ID"})
		return 0, false
	}
	return uint(id), true
}

// ListConversations 分页列出会话，支持 status 过滤与关键词检索。
func (h *AdminHandler) ListConversations(c *gin.Context) {
	status := c.DefaultQuery("status", "all")
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)

	if term := strings.TrimSpace(c.Query("q")); term != "" {
		convs, err := h.convService.Search(c.Request.Context(), term, status, pageSize)
		if err != nil {
			log.Errorf("检索会话失败: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "检索会话失败"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"code":    http.StatusOK,
			"message": "success",
			"data":    gin.H{"conversations": convs, "total": len(convs)},
		})
		return
	}

	convs, total, err := h.convService.List(status, page, pageSize)
	if err != nil {
		log.Errorf("查询会话列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询会话列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"conversations": convs,
			"total":         total,
			"page":          page,
			"pageSize":      pageSize,
		},
	})
}

// GetConversation 返回单条会话的完整转录。
func (h *AdminHandler) GetConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := h.convService.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": detail})
}

// UpdateStatusRequest 定义了会话状态流转的请求体。
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateConversationStatus 由客服流转会话状态。
func (h *AdminHandler) UpdateConversationStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status 不能为空"})
		return
	}
	if err := h.convService.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// DeleteConversation 删除一条会话转录。
func (h *AdminHandler) DeleteConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.convService.Delete(c.Request.Context(), id); err != nil {
		log.Errorf("删除会话 %d 失败: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// ConversationStats 返回后台面板的汇总统计与状态分布。
func (h *AdminHandler) ConversationStats(c *gin.Context) {
	stats, err := h.convService.Stats()
	if err != nil {
		log.Errorf("查询会话统计失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询会话统计失败"})
		return
	}
	counts, err := h.convService.StatusCounts()
	if err != nil {
		log.Errorf("查询状态分布失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询状态分布失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"stats": stats, "statusCounts": counts},
	})
}

// ListLeads 分页列出线索，支持关键词检索。
func (h *AdminHandler) ListLeads(c *gin.Context) {
	if term := strings.TrimSpace(c.Query("q")); term != "" {
		leads, err := h.leadService.Search(term, queryInt(c, "page_size", 20))
		if err != nil {
			log.Errorf("检索线索失败: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "检索线索失败"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"code":    http.StatusOK,
			"message": "success",
			"data":    gin.H{"leads": leads, "total": len(leads)},
		})
		return
	}

	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)
	leads, total, err := h.leadService.List(page, pageSize)
	if err != nil {
		log.Errorf("查询线索列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询线索列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"leads":    leads,
			"total":    total,
			"page":     page,
			"pageSize": pageSize,
		},
	})
}

// GetLead 返回单条线索及其历史会话。
func (h *AdminHandler) GetLead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	lead, err := h.leadService.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "线索不存在"})
		return
	}
	history, err := h.convService.HistoryForEmail(lead.Email, 10)
	if err != nil {
		log.Errorf("查询线索 %d 的历史会话失败: %v", id, err)
		history = nil
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"lead": lead, "conversations": history},
	})
}

// AddNoteRequest 定义了追加线索备注的请求体。
type AddNoteRequest struct {
	Note string `json:"note" binding:"required"`
}

// AddLeadNote 给线索追加一条客服备注。
func (h *AdminHandler) AddLeadNote(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "note 不能为空"})
		return
	}
	if err := h.leadService.AddNote(id, req.Note); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "线索不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// DeleteLead 删除一条线索。
func (h *AdminHandler) DeleteLead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.leadService.Delete(id); err != nil {
		log.Errorf("删除线索 %d 失败: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除线索失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// TestLLM 给运营方一个“测试连接”按钮：往 LLM 发一条探活消息。
func (h *AdminHandler) TestLLM(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 35*time.Second)
	defer cancel()

	reply := h.llmClient.SendMessage(ctx, []llm.Message{
		{Role: "user", Content: "Reply with OK if you can read this."},
	}, "CUSTOMER INFORMATION:\nName: Connection Test\n")

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"connected": reply.Success,
			"reply":     reply.Text,
		},
	})
}
