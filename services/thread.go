package services

import (
	"sort"

	"messaging-app/models"

	"gorm.io/gorm"
)

// Thread 回复树的一个节点；已删除但仍有回复的消息以 Tombstone 保留
type Thread struct {
	Message   models.Message
	Tombstone bool
	Replies   []*Thread
}

// BuildThreads 把一个会话的消息组装成回复树。
// 父消息不在集合中的视为根；成环的消息从最早的一条断开。
func BuildThreads(msgs []models.Message) []*Thread {
	sorted := make([]models.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SentAt.Before(sorted[j].SentAt) })

	byID := make(map[string]models.Message, len(sorted))
	for _, m := range sorted {
		byID[m.MessageID] = m
	}
	children := make(map[string][]models.Message)
	var roots []models.Message
	for _, m := range sorted {
		if m.ReplyToID != nil {
			if _, ok := byID[*m.ReplyToID]; ok && *m.ReplyToID != m.MessageID {
				children[*m.ReplyToID] = append(children[*m.ReplyToID], m)
				continue
			}
		}
		roots = append(roots, m)
	}

	visited := make(map[string]bool, len(sorted))
	var build func(m models.Message) *Thread
	build = func(m models.Message) *Thread {
		visited[m.MessageID] = true
		t := &Thread{Message: m}
		for _, c := range children[m.MessageID] {
			if visited[c.MessageID] {
				continue
			}
			if child := build(c); child != nil {
				t.Replies = append(t.Replies, child)
			}
		}
		if m.IsDeleted {
			if len(t.Replies) == 0 {
				return nil
			}
			t.Tombstone = true
		}
		return t
	}

	var threads []*Thread
	for _, m := range roots {
		if t := build(m); t != nil {
			threads = append(threads, t)
		}
	}
	// 环上的消息没有根可达，从最早的未访问消息开始补齐
	for _, m := range sorted {
		if visited[m.MessageID] {
			continue
		}
		if t := build(m); t != nil {
			threads = append(threads, t)
		}
	}
	return threads
}

// ThreadView 回复树的序列化形式
type ThreadView struct {
	Message MessageView   `json:"message"`
	Deleted bool          `json:"deleted"`
	Replies []*ThreadView `json:"replies"`
}

// ThreadedMessages 会话的全部回复树
func ThreadedMessages(db *gorm.DB, userID, conversationID string) ([]*ThreadView, error) {
	if _, err := GetConversation(db, userID, conversationID); err != nil {
		return nil, err
	}
	var msgs []models.Message
	if err := preloadMessage(db).
		Where("conversation_id = ?", conversationID).
		Order("sent_at").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	views, err := NewMessageViews(db, userID, msgs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]MessageView, len(views))
	for _, v := range views {
		byID[v.MessageID] = v
	}

	var convert func(t *Thread) *ThreadView
	convert = func(t *Thread) *ThreadView {
		v := byID[t.Message.MessageID]
		if t.Tombstone {
			v.MessageBody = ""
			v.FileAttachment = ""
			v.FileURL = nil
		}
		tv := &ThreadView{Message: v, Deleted: t.Tombstone, Replies: make([]*ThreadView, 0, len(t.Replies))}
		for _, r := range t.Replies {
			tv.Replies = append(tv.Replies, convert(r))
		}
		return tv
	}

	threads := BuildThreads(msgs)
	out := make([]*ThreadView, 0, len(threads))
	for _, t := range threads {
		out = append(out, convert(t))
	}
	return out, nil
}
