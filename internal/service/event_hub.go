package service

import (
	"sync"
	"time"
)

// ChatEvent 是推送给后台实时监控页的事件。
type ChatEvent struct {
	Type         string    `json:"type"` // "user_message" 或 "assistant_message"
	SessionID    string    `json:"session_id"`
	CustomerName string    `json:"customer_name"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
}

// EventHub 把聊天事件扇出给所有已连接的后台 WebSocket 订阅者。
// 发布是非阻塞的：订阅者消费跟不上时丢弃事件而不是拖慢聊天主流程。
type EventHub struct {
	mu   sync.Mutex
	subs map[chan ChatEvent]struct{}
}

// NewEventHub 创建一个新的 EventHub。
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan ChatEvent]struct{})}
}

// Subscribe 注册一个订阅者，返回接收通道。
func (h *EventHub) Subscribe() chan ChatEvent {
	ch := make(chan ChatEvent, 32)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe 注销订阅者并关闭其通道。
func (h *EventHub) Unsubscribe(ch chan ChatEvent) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish 向所有订阅者广播事件，通道已满时直接丢弃。
func (h *EventHub) Publish(event ChatEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
