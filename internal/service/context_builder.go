// Package service 包含了应用的业务逻辑层。
package service

import (
	"fmt"
	"net/url"
	"strings"

	"gorm.io/gorm"

	"github.com/metspa/woo-ai-customer-service/internal/model"
	"github.com/metspa/woo-ai-customer-service/internal/repository"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
)

// 每次建会最多注入的历史订单数。
const maxContextOrders = 5

// OrderSummary 是注入提示词的单笔订单摘要。
type OrderSummary struct {
	OrderNumber     string
	Date            string
	Status          string
	StatusKey       string
	Total           float64
	Currency        string
	Items           []OrderItemSummary
	TrackingNumbers []string
	Carrier         string
	TrackingURL     string
	ShippingTo      string
}

// OrderItemSummary 是订单行项目摘要。
type OrderItemSummary struct {
	Name     string
	SKU      string
	Quantity int
}

// CustomerContext 汇总了一位访客可见的全部历史数据。
type CustomerContext struct {
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	IsReturning   bool
	OrderCount    int64
	TotalSpent    float64
	CustomerSince string
	Orders        []OrderSummary
}

// ContextBuilder 把访客的订单历史组装成 LLM 可读的上下文块。
type ContextBuilder interface {
	Build(lead *model.Lead) *CustomerContext
}

type contextBuilder struct {
	orderRepo repository.OrderRepository
}

// NewContextBuilder 创建一个新的 ContextBuilder 实例。
func NewContextBuilder(orderRepo repository.OrderRepository) ContextBuilder {
	return &contextBuilder{orderRepo: orderRepo}
}

// Build 组装客户上下文。注册客户按账号查单，游客按账单邮箱查单。
// 店铺库查询失败只记日志并降级为“无历史订单”，绝不编造订单数据。
func (b *contextBuilder) Build(lead *model.Lead) *CustomerContext {
	cc := &CustomerContext{
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		Email:     lead.Email,
		Phone:     lead.Phone,
	}

	customer, err := b.orderRepo.FindCustomerByEmail(lead.Email)
	if err != nil && err != gorm.ErrRecordNotFound {
		log.Errorf("查询注册客户失败: %v", err)
		return cc
	}

	var orders []model.Order
	if customer != nil {
		cc.IsReturning = true
		cc.CustomerSince = customer.RegisteredAt.Format("January 2006")
		if count, spent, aggErr := b.orderRepo.CustomerAggregates(customer.ID); aggErr == nil {
			cc.OrderCount = count
			cc.TotalSpent = spent
		} else {
			log.Errorf("统计客户订单失败: %v", aggErr)
		}
		orders, err = b.orderRepo.RecentOrdersByCustomer(customer.ID, maxContextOrders)
	} else {
		orders, err = b.orderRepo.RecentOrdersByBillingEmail(lead.Email, maxContextOrders)
	}
	if err != nil {
		log.Errorf("查询历史订单失败: %v", err)
		return cc
	}

	cc.Orders = summarizeOrders(orders)
	if len(cc.Orders) > 0 {
		cc.IsReturning = true
	}
	return cc
}

// 物流单号与承运商可能存在多种约定的 meta key 下。
var (
	trackingNumberKeys = []string{
		"_tracking_number",
		"tracking_number",
		"_shipment_tracking_number",
		"fedex_tracking_number",
		"ups_tracking_number",
		"usps_tracking_number",
		"dhl_tracking_number",
	}
	carrierKeys = []string{
		"_shipping_carrier",
		"shipping_carrier",
		"_tracking_provider",
		"tracking_provider",
	}
)

func summarizeOrders(orders []model.Order) []OrderSummary {
	summaries := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		s := OrderSummary{
			OrderNumber: o.OrderNumber,
			Date:        o.CreatedAt.Format("January 2, 2006"),
			Status:      StatusDisplayName(o.Status),
			StatusKey:   o.Status,
			Total:       o.Total,
			Currency:    o.Currency,
			ShippingTo:  o.ShippingTo,
		}
		for _, item := range o.Items {
			s.Items = append(s.Items, OrderItemSummary{
				Name:     item.Name,
				SKU:      item.SKU,
				Quantity: item.Quantity,
			})
		}

		meta := make(map[string]string, len(o.Meta))
		for _, m := range o.Meta {
			meta[m.MetaKey] = m.Value
		}
		for _, key := range trackingNumberKeys {
			if v := meta[key]; v != "" && !contains(s.TrackingNumbers, v) {
				s.TrackingNumbers = append(s.TrackingNumbers, v)
			}
		}
		for _, key := range carrierKeys {
			if v := meta[key]; v != "" {
				s.Carrier = v
				break
			}
		}
		if len(s.TrackingNumbers) > 0 {
			s.TrackingURL = GenerateTrackingURL(s.TrackingNumbers[0], s.Carrier)
		}

		summaries = append(summaries, s)
	}
	return summaries
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// statusNames 把订单状态键映射为展示名。
var statusNames = map[string]string{
	"pending":    "Pending",
	"processing": "Processing",
	"on-hold":    "On Hold",
	"completed":  "Completed",
	"shipped":    "Shipped",
	"delivered":  "Delivered",
	"cancelled":  "Cancelled",
	"refunded":   "Refunded",
	"failed":     "Failed",
}

// StatusDisplayName 返回订单状态的展示名，未知状态原样返回。
func StatusDisplayName(status string) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return status
}

// carrierURLTemplates 按承运商名子串匹配生成查询链接。
var carrierURLTemplates = []struct {
	key      string
	template string
}{
	{"usps", "https://tools.usps.com/go/TrackConfirmAction?tLabels=%s"},
	{"ups", "https://www.ups.com/track?tracknum=%s"},
	{"fedex", "https://www.fedex.com/fedextrack/?trknbr=%s"},
	{"dhl", "https://www.dhl.com/en/express/tracking.html?AWB=%s"},
	{"ontrac", "https://www.ontrac.com/trackingdetail.asp?tracking=%s"},
	{"lasership", "https://www.lasership.com/track/%s"},
}

// GenerateTrackingURL 根据承运商生成物流查询链接。
// 未知承运商回退到 17track 聚合查询。
func GenerateTrackingURL(trackingNumber, carrier string) string {
	carrierLower := strings.ToLower(carrier)
	escaped := url.QueryEscape(trackingNumber)

	for _, c := range carrierURLTemplates {
		if strings.Contains(carrierLower, c.key) {
			return fmt.Sprintf(c.template, escaped)
		}
	}
	return "https://t.17track.net/en#nums=" + escaped
}

// Format 把客户上下文序列化为注入系统提示词的确定性纯文本块。
// 没有历史订单时输出明确的“无历史订单”文案，绝不猜测。
func (cc *CustomerContext) Format() string {
	var b strings.Builder

	b.WriteString("CUSTOMER INFORMATION:\n")
	fmt.Fprintf(&b, "Name: %s %s\n", cc.FirstName, cc.LastName)
	fmt.Fprintf(&b, "Email: %s\n", cc.Email)
	if cc.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", cc.Phone)
	}

	if cc.IsReturning {
		b.WriteString("Customer Type: Returning Customer\n")
		if cc.OrderCount > 0 {
			fmt.Fprintf(&b, "Total Orders: %d\n", cc.OrderCount)
		}
		if cc.TotalSpent > 0 {
			fmt.Fprintf(&b, "Total Spent: $%.2f\n", cc.TotalSpent)
		}
		if cc.CustomerSince != "" {
			fmt.Fprintf(&b, "Customer Since: %s\n", cc.CustomerSince)
		}
	} else {
		b.WriteString("Customer Type: New/Guest Customer\n")
	}

	if len(cc.Orders) == 0 {
		b.WriteString("\nNo previous orders found for this customer.\n")
		return b.String()
	}

	b.WriteString("\nRECENT ORDERS:\n")
	for _, o := range cc.Orders {
		fmt.Fprintf(&b, "\n--- Order #%s ---\n", o.OrderNumber)
		fmt.Fprintf(&b, "Date: %s\n", o.Date)
		fmt.Fprintf(&b, "Status: %s\n", o.Status)
		fmt.Fprintf(&b, "Total: $%.2f\n", o.Total)

		b.WriteString("Items:\n")
		for _, item := range o.Items {
			fmt.Fprintf(&b, "  - %s (x%d)\n", item.Name, item.Quantity)
		}

		if len(o.TrackingNumbers) > 0 {
			fmt.Fprintf(&b, "Tracking Number(s): %s\n", strings.Join(o.TrackingNumbers, ", "))
			if o.Carrier != "" {
				fmt.Fprintf(&b, "Carrier: %s\n", o.Carrier)
			}
			if o.TrackingURL != "" {
				fmt.Fprintf(&b, "Track Package: %s\n", o.TrackingURL)
			}
		}

		if o.ShippingTo != "" {
			fmt.Fprintf(&b, "Shipping To: %s\n", o.ShippingTo)
		}
	}

	return b.String()
}
