package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"messaging-app/models"
	"messaging-app/utils"

	"github.com/blugelabs/bluge"
	"github.com/blugelabs/bluge/analysis/analyzer"
	"gorm.io/gorm"
)

const (
	fieldBody         = "body"
	fieldConversation = "conversation_id"
)

// errNoTerms 查询文本切不出词项（例如只有标点），只能走 LIKE
var errNoTerms = errors.New("search text has no indexable terms")

// SearchIndex 消息正文的全文索引
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

// Search 全局索引，为 nil 时退化为数据库 LIKE 查询
var Search *SearchIndex

// OpenSearchIndex path 为空时只在内存中建索引
func OpenSearchIndex(path string, log *slog.Logger) (*SearchIndex, error) {
	cfg := bluge.InMemoryOnlyConfig()
	if path != "" {
		cfg = bluge.DefaultConfig(path)
	}
	w, err := bluge.OpenWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &SearchIndex{writer: w, log: log}, nil
}

func (s *SearchIndex) Close() error {
	return s.writer.Close()
}

// Index 写入或覆盖一条消息，已删除的消息从索引移除
func (s *SearchIndex) Index(m models.Message) error {
	if m.IsDeleted || m.MessageBody == "" {
		return s.Remove(m.MessageID)
	}
	doc := bluge.NewDocument(m.MessageID).
		AddField(bluge.NewTextField(fieldBody, m.MessageBody)).
		AddField(bluge.NewKeywordField(fieldConversation, m.ConversationID))
	return s.writer.Update(doc.ID(), doc)
}

func (s *SearchIndex) Remove(messageID string) error {
	return s.writer.Delete(bluge.Identifier(messageID))
}

// queryTerms 用与索引相同的分析器切词，查询词可能只是正文词项的一部分
func queryTerms(text string) []string {
	var terms []string
	for _, tok := range analyzer.NewStandardAnalyzer().Analyze([]byte(text)) {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// Query 返回正文包含 text 的候选消息 ID；conversationIDs 非 nil 时只在这些会话中查找。
// 每个词项按 *term* 通配匹配，结果是子串匹配的超集，调用方再用 LIKE 精确过滤。
func (s *SearchIndex) Query(ctx context.Context, text string, conversationIDs []string) ([]string, error) {
	terms := queryTerms(text)
	if len(terms) == 0 {
		return nil, errNoTerms
	}
	if conversationIDs != nil && len(conversationIDs) == 0 {
		return nil, nil
	}

	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery()
	for _, term := range terms {
		q.AddMust(bluge.NewWildcardQuery("*" + term + "*").SetField(fieldBody))
	}
	if conversationIDs != nil {
		convs := bluge.NewBooleanQuery().SetMinShould(1)
		for _, id := range conversationIDs {
			convs.AddShould(bluge.NewTermQuery(id).SetField(fieldConversation))
		}
		q.AddMust(convs)
	}
	it, err := reader.Search(ctx, bluge.NewAllMatches(q))
	if err != nil {
		return nil, err
	}

	var ids []string
	match, err := it.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
				return false
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = it.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Rebuild 从数据库重建索引，数据库暂时不可用时重试
func (s *SearchIndex) Rebuild(ctx context.Context, db *gorm.DB) (int, error) {
	total := 0
	op := func() error {
		total = 0
		var batch []models.Message
		return db.WithContext(ctx).
			Where("is_deleted = ?", false).
			FindInBatches(&batch, 500, func(tx *gorm.DB, _ int) error {
				for _, m := range batch {
					if err := s.Index(m); err != nil {
						return err
					}
				}
				total += len(batch)
				return nil
			}).Error
	}
	notify := func(err error, wait time.Duration) {
		s.log.Warn("search index rebuild failed, retrying", "error", err, "wait", wait)
	}
	if err := utils.Retry(ctx, 4, time.Second, op, notify); err != nil {
		return 0, err
	}
	s.log.Info("search index rebuilt", "messages", total)
	return total, nil
}

// indexMessage 在全局索引可用时同步一条消息
func indexMessage(m models.Message) {
	if Search == nil {
		return
	}
	if err := Search.Index(m); err != nil {
		Search.log.Warn("index message failed", "message_id", m.MessageID, "error", err)
	}
}
