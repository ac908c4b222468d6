package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thriftly_backend/internal/testutil"
	"thriftly_backend/models"
	"thriftly_backend/utils"
)

const testSecret = "test-secret"

func newUserService(t *testing.T) (*UserService, *sentMail) {
	t.Helper()
	mail := &sentMail{}
	db := testutil.NewTestDB(t)
	return NewUserService(db, mail, AuthSettings{
		JWTSecret: testSecret,
		JWTTTL:    time.Hour,
		OTPTTL:    10 * time.Minute,
	}), mail
}

func otpFrom(t *testing.T, body string) string {
	t.Helper()
	idx := strings.LastIndex(body, ": ")
	require.NotEqual(t, -1, idx, body)
	return strings.TrimSpace(body[idx+2:])
}

func TestUserService_RegisterVerifyLogin(t *testing.T) {
	svc, mail := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "  Alice@Example.com ",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.IsVerified)
	assert.NotEqual(t, "secret1", user.Password)

	sent := mail.last(t)
	assert.Equal(t, "alice@example.com", sent.To)
	assert.Equal(t, "Verify Account", sent.Subject)
	otp := otpFrom(t, sent.Body)
	assert.Len(t, otp, 4)

	_, _, err = svc.Login(ctx, "alice@example.com", "secret1")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindAuth))
	assert.Equal(t, "Not Verified", errMessage(err))

	err = svc.Verify(ctx, "alice@example.com", "0000")
	assert.Equal(t, "Invalid Code", errMessage(err))

	require.NoError(t, svc.Verify(ctx, "alice@example.com", otp))

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong-pass")
	assert.Equal(t, "Wrong Password", errMessage(err))
	_, _, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, "User not found", errMessage(err))

	token, logged, err := svc.Login(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	claims, err := utils.ParseJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestUserService_RegisterValidation(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   RegisterInput
		msg  string
	}{
		{"missing fields", RegisterInput{Username: "bob"}, "Username, email and password are required"},
		{"short password", RegisterInput{Username: "bob", Email: "b@example.com", Password: "123"}, "Password must be at least 6 characters"},
		{"duplicate email", RegisterInput{Username: "bob", Email: "A@example.com", Password: "secret1"}, "Email already exists"},
		{"duplicate username", RegisterInput{Username: "alice", Email: "b@example.com", Password: "secret1"}, "Username already taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, models.IsKind(err, models.KindValidation))
			assert.Equal(t, tt.msg, errMessage(err))
		})
	}
}

func TestUserService_ExpiredCode(t *testing.T) {
	svc, mail := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)
	otp := otpFrom(t, mail.last(t).Body)

	svc.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	err = svc.Verify(ctx, "a@example.com", otp)
	assert.Equal(t, "Code expired", errMessage(err))
}

func TestUserService_ResetPassword(t *testing.T) {
	svc, mail := newUserService(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, svc.db, "alice")

	err := svc.ForgotPassword(ctx, "nobody@example.com")
	assert.True(t, models.IsKind(err, models.KindNotFound))
	assert.Equal(t, "Email not found", errMessage(err))

	require.NoError(t, svc.ForgotPassword(ctx, user.Email))
	sent := mail.last(t)
	assert.Equal(t, "Reset Password", sent.Subject)
	otp := otpFrom(t, sent.Body)

	err = svc.ResetPassword(ctx, user.Email, "0000", "newsecret")
	assert.Equal(t, "Invalid OTP", errMessage(err))
	err = svc.ResetPassword(ctx, user.Email, otp, "123")
	assert.True(t, models.IsKind(err, models.KindValidation))

	require.NoError(t, svc.ResetPassword(ctx, user.Email, otp, "newsecret"))
	_, _, err = svc.Login(ctx, user.Email, "newsecret")
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, user.Email, otp, "another1")
	assert.Equal(t, "Invalid OTP", errMessage(err), "codes are single use")
}

func TestUserService_Profile(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, svc.db, "alice")
	bob := testutil.CreateUser(t, svc.db, "bob")
	testutil.CreateProduct(t, svc.db, alice.ID, "Denim Jacket", 1000)

	_, err := svc.UpdateProfile(ctx, alice.ID, ProfileInput{Username: "bob"})
	assert.Equal(t, "Username already taken", errMessage(err))

	updated, err := svc.UpdateProfile(ctx, alice.ID, ProfileInput{Username: "alice_t", Bio: "Vintage <b>lover</b>"})
	require.NoError(t, err)
	assert.Equal(t, "alice_t", updated.Username)
	assert.Equal(t, "Vintage lover", updated.Bio)

	require.NoError(t, svc.db.Create(&models.Review{ReviewerID: bob.ID, SellerID: alice.ID, Rating: 4}).Error)

	profile, err := svc.PublicProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice_t", profile.User.Username)
	assert.Len(t, profile.Listings, 1)
	assert.Equal(t, int64(1), profile.Rating.Count)

	_, err = svc.PublicProfile(ctx, 999)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestUserService_DeleteUserCascades(t *testing.T) {
	env := newTestEnv(t)
	svc := NewUserService(env.db, env.mailer, AuthSettings{JWTSecret: testSecret, JWTTTL: time.Hour})
	offers := NewOfferService(env.db, env.notifications)
	follows := NewFollowService(env.db, env.notifications)
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	aliceItem := testutil.CreateProduct(t, env.db, alice.ID, "Denim Jacket", 1000)
	bobItem := testutil.CreateProduct(t, env.db, bob.ID, "Wool Scarf", 300)

	_, err := offers.Create(ctx, bob.ID, aliceItem.ID, decimal.NewFromInt(900))
	require.NoError(t, err)
	_, err = offers.Create(ctx, alice.ID, bobItem.ID, decimal.NewFromInt(200))
	require.NoError(t, err)
	require.NoError(t, follows.Follow(ctx, alice.ID, bob.ID))

	require.NoError(t, svc.DeleteUser(ctx, alice.ID))

	_, err = svc.Get(ctx, alice.ID)
	assert.True(t, models.IsKind(err, models.KindNotFound))

	var n int64
	require.NoError(t, env.db.Model(&models.Product{}).Where("seller_id = ?", alice.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, env.db.Model(&models.Offer{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, env.db.Model(&models.Follow{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, env.db.Model(&models.Product{}).Count(&n).Error)
	assert.Equal(t, int64(1), n, "other sellers keep their listings")

	err = svc.DeleteUser(ctx, alice.ID)
	assert.True(t, models.IsKind(err, models.KindNotFound))

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)
}
