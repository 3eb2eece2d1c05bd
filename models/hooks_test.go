package models_test

import (
	"context"
	"strings"
	"testing"

	"messaging-app/models"
	"messaging-app/testutil"

	"github.com/stretchr/testify/require"
)

func TestMessageCreateNotifiesOtherParticipants(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	conv := testutil.CreateConversation(t, db, models.ConversationGroup, "Team", alice, bob, carol)

	require.NoError(t, db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conv.ConversationID, carol.UserID).
		Update("is_muted", true).Error)

	msg := testutil.CreateMessage(t, db, conv, alice, "hello team")

	var notes []models.Notification
	require.NoError(t, db.Where("related_message_id = ?", msg.MessageID).Find(&notes).Error)
	require.Len(t, notes, 1)
	require.Equal(t, bob.UserID, notes[0].RecipientID)
	require.Equal(t, models.NotificationNewMessage, notes[0].NotificationType)
	require.Equal(t, "New message in Team", notes[0].Title)
	require.Equal(t, "hello team", notes[0].Message)
}

func TestDirectMessageTitleAndPreview(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	require.NoError(t, db.Model(&alice).Updates(map[string]interface{}{"first_name": "Alice", "last_name": "Liddell"}).Error)
	bob := testutil.CreateUser(t, db, "bob")
	conv := testutil.CreateConversation(t, db, models.ConversationDirect, "", alice, bob)

	long := strings.Repeat("x", 120)
	msg := testutil.CreateMessage(t, db, conv, alice, long)

	var note models.Notification
	require.NoError(t, db.Where("related_message_id = ?", msg.MessageID).Take(&note).Error)
	require.Equal(t, "New message from Alice Liddell", note.Title)
	require.Equal(t, strings.Repeat("x", 100)+"...", note.Message)
}

func TestAttachmentMessagePreviewAndSystemMessages(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	conv := testutil.CreateConversation(t, db, models.ConversationGroup, "", alice, bob)

	img := models.Message{ConversationID: conv.ConversationID, SenderID: alice.UserID,
		MessageType: models.MessageTypeImage, FileAttachment: "https://cdn.example.com/a.png"}
	require.NoError(t, db.Create(&img).Error)

	var note models.Notification
	require.NoError(t, db.Where("related_message_id = ?", img.MessageID).Take(&note).Error)
	require.Equal(t, "Sent a image", note.Message)
	require.Equal(t, "New message in Group Chat", note.Title)

	sys := models.Message{ConversationID: conv.ConversationID, SenderID: alice.UserID,
		MessageType: models.MessageTypeSystem, MessageBody: "bob joined"}
	require.NoError(t, db.Create(&sys).Error)

	var n int64
	require.NoError(t, db.Model(&models.Notification{}).Where("related_message_id = ?", sys.MessageID).Count(&n).Error)
	require.Zero(t, n)
}

func TestMentionNotifications(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	outsider := testutil.CreateUser(t, db, "dave")
	conv := testutil.CreateConversation(t, db, models.ConversationGroup, "Team", alice, bob)

	msg := testutil.CreateMessage(t, db, conv, alice, "hey @bob, @bob! ping @alice and @dave and @nobody @")

	var mentions []models.Notification
	require.NoError(t, db.Where("related_message_id = ? AND notification_type = ?",
		msg.MessageID, models.NotificationMention).Find(&mentions).Error)
	require.Len(t, mentions, 1)
	require.Equal(t, bob.UserID, mentions[0].RecipientID)
	require.Equal(t, "You were mentioned by alice", mentions[0].Title)
	require.True(t, strings.HasPrefix(mentions[0].Message, "In: hey @bob"))
	require.True(t, strings.HasSuffix(mentions[0].Message, "..."))
	_ = outsider
}

func TestMentionedUsernames(t *testing.T) {
	require.Equal(t, []string{"bob", "carol"}, models.MentionedUsernames("@bob: hi @carol. @bob? @ x@y"))
	require.Empty(t, models.MentionedUsernames("no mentions here"))
}

func TestMessageCreateBumpsConversation(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	conv := testutil.CreateConversation(t, db, models.ConversationDirect, "", alice, bob)

	msg := testutil.CreateMessage(t, db, conv, alice, "hi")

	var reloaded models.Conversation
	require.NoError(t, db.Take(&reloaded, "conversation_id = ?", conv.ConversationID).Error)
	require.False(t, reloaded.UpdatedAt.Before(msg.SentAt))
}

func TestEditWritesHistory(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	conv := testutil.CreateConversation(t, db, models.ConversationDirect, "", alice, bob)
	msg := testutil.CreateMessage(t, db, conv, alice, "first")

	ctx := models.WithActor(context.Background(), alice.UserID)
	require.NoError(t, msg.Edit(db.WithContext(ctx), "second"))
	require.NoError(t, msg.Edit(db.WithContext(ctx), "second"))

	var history []models.MessageHistory
	require.NoError(t, db.Where("message_id = ?", msg.MessageID).Find(&history).Error)
	require.Len(t, history, 1)
	require.Equal(t, "first", history[0].PreviousBody)
	require.NotNil(t, history[0].EditedByID)
	require.Equal(t, alice.UserID, *history[0].EditedByID)

	var reloaded models.Message
	require.NoError(t, db.Take(&reloaded, "message_id = ?", msg.MessageID).Error)
	require.Equal(t, "second", reloaded.MessageBody)
	require.True(t, reloaded.IsEdited)
	require.NotNil(t, reloaded.EditedAt)
	require.NotNil(t, reloaded.EditedByID)
}

func TestReadAndDeleteDoNotWriteHistory(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	conv := testutil.CreateConversation(t, db, models.ConversationDirect, "", alice, bob)
	msg := testutil.CreateMessage(t, db, conv, alice, "first")

	require.NoError(t, msg.MarkAsRead(db))
	require.NoError(t, msg.SoftDelete(db))

	var n int64
	require.NoError(t, db.Model(&models.MessageHistory{}).Where("message_id = ?", msg.MessageID).Count(&n).Error)
	require.Zero(t, n)

	var reloaded models.Message
	require.NoError(t, db.Take(&reloaded, "message_id = ?", msg.MessageID).Error)
	require.True(t, reloaded.IsRead)
	require.True(t, reloaded.IsDeleted)
	require.False(t, reloaded.IsEdited)
}

func TestDeleteConversationCascades(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	conv := testutil.CreateConversation(t, db, models.ConversationDirect, "", alice, bob)
	testutil.CreateMessage(t, db, conv, alice, "hi")

	require.NoError(t, db.Delete(&models.Conversation{}, "conversation_id = ?", conv.ConversationID).Error)

	for _, model := range []interface{}{&models.ConversationParticipant{}, &models.Message{}, &models.Notification{}} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		require.Zero(t, n)
	}
}

func TestConnectionsDriveOnlineFlag(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")

	c1, err := models.OpenConnection(db, alice.UserID, "127.0.0.1")
	require.NoError(t, err)
	c2, err := models.OpenConnection(db, alice.UserID, "127.0.0.1")
	require.NoError(t, err)

	online := func() bool {
		var u models.User
		require.NoError(t, db.Take(&u, "user_id = ?", alice.UserID).Error)
		return u.IsOnline
	}
	require.True(t, online())
	require.NoError(t, models.CloseConnection(db, c1))
	require.True(t, online())
	require.NoError(t, models.CloseConnection(db, c2))
	require.False(t, online())
}

func TestPreview(t *testing.T) {
	require.Equal(t, "héllo", models.Preview("héllo", 5))
	require.Equal(t, "hé...", models.Preview("héllo", 2))
}
