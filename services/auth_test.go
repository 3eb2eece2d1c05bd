package services_test

import (
	"testing"
	"time"

	"messaging-app/models"
	"messaging-app/services"
	"messaging-app/testutil"

	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestRegisterAndLogin(t *testing.T) {
	db := testutil.NewDB(t)

	user, err := services.Register(db, services.RegisterInput{
		Username:  "alice",
		Email:     " Alice@Example.com ",
		Password:  "correct-horse",
		FirstName: "Alice",
	})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotEqual(t, "correct-horse", user.Password)

	_, err = services.Register(db, services.RegisterInput{Username: "alice", Email: "other@example.com", Password: "correct-horse"})
	require.ErrorIs(t, err, services.ErrUserExists)

	_, err = services.Register(db, services.RegisterInput{Username: "bob", Email: "not-an-email", Password: "correct-horse"})
	require.ErrorIs(t, err, services.ErrValidation)

	_, err = services.Register(db, services.RegisterInput{Username: "bob", Email: "bob@example.com", Password: "short"})
	require.ErrorIs(t, err, services.ErrValidation)

	pair, logged, err := services.Login(db, "ALICE@example.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, user.UserID, logged.UserID)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	_, _, err = services.Login(db, "alice@example.com", "wrong-password")
	require.ErrorIs(t, err, services.ErrInvalidCredentials)

	_, _, err = services.Login(db, "nobody@example.com", "correct-horse")
	require.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestTokens(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")

	pair, err := services.IssueTokens(alice)
	require.NoError(t, err)

	claims, err := services.ParseAccessToken(pair.Access)
	require.NoError(t, err)
	require.Equal(t, alice.UserID, claims.UserID)
	require.Equal(t, "alice", claims.Username)

	// 刷新令牌不能当访问令牌用
	_, err = services.ParseAccessToken(pair.Refresh)
	require.ErrorIs(t, err, services.ErrInvalidToken)

	access, err := services.Refresh(db, pair.Refresh)
	require.NoError(t, err)
	_, err = services.ParseAccessToken(access)
	require.NoError(t, err)

	_, err = services.Refresh(db, pair.Access)
	require.ErrorIs(t, err, services.ErrInvalidToken)

	_, err = services.ParseAccessToken("garbage")
	require.ErrorIs(t, err, services.ErrInvalidToken)

	require.NoError(t, db.Model(&alice).Update("is_active", false).Error)
	_, err = services.Refresh(db, pair.Refresh)
	require.ErrorIs(t, err, services.ErrInvalidToken)
}

func TestUpdateProfile(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	testutil.CreateUser(t, db, "bob")

	err := services.UpdateProfile(db, &alice, services.ProfileInput{Username: ptr("bob")})
	require.ErrorIs(t, err, services.ErrUserExists)

	err = services.UpdateProfile(db, &alice, services.ProfileInput{Email: ptr("bob@example.com")})
	require.ErrorIs(t, err, services.ErrUserExists)

	err = services.UpdateProfile(db, &alice, services.ProfileInput{ProfilePicture: ptr("not a url")})
	require.ErrorIs(t, err, services.ErrValidation)

	require.NoError(t, services.UpdateProfile(db, &alice, services.ProfileInput{
		Username:  ptr("alicia"),
		FirstName: ptr("Alicia"),
		Bio:       ptr("hello"),
	}))

	reloaded, err := services.GetUser(db, alice.UserID)
	require.NoError(t, err)
	require.Equal(t, "alicia", reloaded.Username)
	require.Equal(t, "Alicia", reloaded.FirstName)
	require.Equal(t, "hello", reloaded.Bio)

	// 旧用户名不再命中缓存
	id, err := models.LookupUserIDByUsername(db, "alice")
	require.NoError(t, err)
	require.Empty(t, id)
	id, err = models.LookupUserIDByUsername(db, "alicia")
	require.NoError(t, err)
	require.Equal(t, alice.UserID, id)
}

func TestListUsers(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateUser(t, db, "carol")
	testutil.CreateUser(t, db, "alice")
	inactive := testutil.CreateUser(t, db, "alfred")
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)

	users, total, err := services.ListUsers(db, "", services.NewPage(1, 10, 10, 50))
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Equal(t, "alice", users[0].Username)
	require.Equal(t, "carol", users[1].Username)

	users, total, err = services.ListUsers(db, "al", services.NewPage(1, 10, 10, 50))
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "alice", users[0].Username)

	_, err = services.GetUser(db, "missing")
	require.ErrorIs(t, err, services.ErrNotFound)
}

func TestOnlineStatus(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	u := models.User{IsOnline: true}
	require.Equal(t, "online", services.OnlineStatus(u, now))

	u = models.User{LastSeen: now.Add(-2 * time.Minute)}
	require.Equal(t, "recently_active", services.OnlineStatus(u, now))

	u = models.User{LastSeen: now.Add(-time.Hour)}
	require.Equal(t, "offline", services.OnlineStatus(u, now))
	require.Equal(t, "offline", services.OnlineStatus(models.User{}, now))
}
