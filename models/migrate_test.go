package models_test

import (
	"testing"

	"messaging-app/models"
	"messaging-app/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func tableDDL(t *testing.T, db *gorm.DB, table string) string {
	t.Helper()
	var ddl string
	require.NoError(t, db.Raw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&ddl).Error)
	require.NotEmpty(t, ddl)
	return ddl
}

func TestMigrateKeepsForeignKeysOnChildTables(t *testing.T) {
	db := testutil.NewDB(t)

	require.NotContains(t, tableDDL(t, db, "users"), "FOREIGN KEY")
	conversations := tableDDL(t, db, "conversations")
	require.NotContains(t, conversations, "REFERENCES `messages`")
	require.NotContains(t, conversations, "REFERENCES `conversation_participants`")

	participants := tableDDL(t, db, "conversation_participants")
	require.Contains(t, participants, "REFERENCES `users`")
	require.Contains(t, participants, "REFERENCES `conversations`")
	require.Contains(t, tableDDL(t, db, "messages"), "REFERENCES `conversations`")
	require.Contains(t, tableDDL(t, db, "message_histories"), "REFERENCES `messages`")
	require.Contains(t, tableDDL(t, db, "ws_connections"), "REFERENCES `users`")
	require.Contains(t, tableDDL(t, db, "message_reactions"), "REFERENCES `users`")

	alice := testutil.CreateUser(t, db, "alice")
	require.NotEmpty(t, alice.UserID)
}

func TestDeleteUserCascades(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	conv := testutil.CreateConversation(t, db, models.ConversationDirect, "", alice, bob)
	msg := testutil.CreateMessage(t, db, conv, bob, "hi")
	require.NoError(t, db.Create(&models.MessageReaction{MessageID: msg.MessageID, UserID: alice.UserID, ReactionType: "like"}).Error)
	_, err := models.OpenConnection(db, alice.UserID, "127.0.0.1")
	require.NoError(t, err)

	require.NoError(t, db.Delete(&models.User{}, "user_id = ?", alice.UserID).Error)

	for _, model := range []interface{}{&models.ConversationParticipant{}, &models.MessageReaction{}, &models.WSConnection{}} {
		var n int64
		require.NoError(t, db.Model(model).Where("user_id = ?", alice.UserID).Count(&n).Error)
		require.Zero(t, n)
	}
	var notes int64
	require.NoError(t, db.Model(&models.Notification{}).Where("recipient_id = ?", alice.UserID).Count(&notes).Error)
	require.Zero(t, notes)

	var left int64
	require.NoError(t, db.Model(&models.ConversationParticipant{}).Where("user_id = ?", bob.UserID).Count(&left).Error)
	require.EqualValues(t, 1, left)
}
