// Package es 提供了与 Elasticsearch 交互的客户端功能。
// 会话转录在此建立全文索引，供客服后台检索。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/metspa/woo-ai-customer-service/internal/config"
	"github.com/metspa/woo-ai-customer-service/pkg/log"
)

var ESClient *elasticsearch.Client

// ConversationDoc 是写入索引的会话文档。
// Transcript 是全部消息正文拼接后的纯文本。
type ConversationDoc struct {
	ConversationID uint   `json:"conversation_id"`
	SessionID      string `json:"session_id"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	Transcript     string `json:"transcript"`
	Status         string `json:"status"`
	StartedAt      string `json:"started_at"`
}

// InitES 初始化 Elasticsearch 客户端
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(indexName string) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := `{
		"mappings": {
			"properties": {
				"conversation_id": { "type": "long" },
				"session_id": { "type": "keyword" },
				"customer_name": { "type": "text" },
				"customer_email": {
					"type": "text",
					"fields": { "raw": { "type": "keyword" } }
				},
				"transcript": { "type": "text" },
				"status": { "type": "keyword" },
				"started_at": { "type": "date" }
			}
		}
	}`

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// IndexConversation 将单条会话文档写入（或覆盖）索引。
// 同一会话每次追加消息后重建整篇文档。
func IndexConversation(ctx context.Context, indexName string, doc ConversationDoc) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: strconv.FormatUint(uint64(doc.ConversationID), 10),
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引会话文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index conversation")
	}

	return nil
}

// DeleteConversation 从索引中删除会话文档。
func DeleteConversation(ctx context.Context, indexName string, conversationID uint) error {
	req := esapi.DeleteRequest{
		Index:      indexName,
		DocumentID: strconv.FormatUint(uint64(conversationID), 10),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	// 文档不存在不算错误
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return errors.New("failed to delete conversation from index")
	}
	return nil
}

// SearchConversations 按关键词（可选状态过滤）检索会话，返回命中的会话 ID。
func SearchConversations(ctx context.Context, indexName, query, status string, limit int) ([]uint, error) {
	must := []map[string]interface{}{
		{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"customer_name", "customer_email", "transcript"},
			},
		},
	}
	var filter []map[string]interface{}
	if status != "" && status != "all" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"status": status},
		})
	}

	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
		"sort": []map[string]interface{}{
			{"started_at": map[string]interface{}{"order": "desc"}},
		},
		"size": limit,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, err
	}

	res, err := ESClient.Search(
		ESClient.Search.WithContext(ctx),
		ESClient.Search.WithIndex(indexName),
		ESClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source struct {
					ConversationID uint `json:"conversation_id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]uint, 0, len(result.Hits.Hits))
	for _, h := range result.Hits.Hits {
		ids = append(ids, h.Source.ConversationID)
	}
	return ids, nil
}
