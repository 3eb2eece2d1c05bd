package main

import (
	"bytes"
	"testing"

	"messaging-app/models"
	"messaging-app/testutil"

	"github.com/stretchr/testify/require"
)

func TestCleanup(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	conv := testutil.CreateConversation(t, db, models.ConversationDirect, "", alice, bob)
	testutil.CreateMessage(t, db, conv, alice, "old news")
	require.NoError(t, db.Model(&models.Notification{}).
		Where("recipient_id = ?", bob.UserID).
		Updates(map[string]interface{}{"is_read": true, "read_at": db.NowFunc().AddDate(0, 0, -90)}).Error)

	var out bytes.Buffer
	require.NoError(t, cleanup(&out, db, 30, true))
	require.Contains(t, out.String(), "Would delete 1 notifications older than 30 days")

	out.Reset()
	require.NoError(t, cleanup(&out, db, 30, false))
	require.Contains(t, out.String(), "Successfully deleted 1 old notifications")

	out.Reset()
	require.NoError(t, cleanup(&out, db, 30, false))
	require.Contains(t, out.String(), "No old notifications to delete")

	require.Error(t, cleanup(&out, db, -5, false))
}
