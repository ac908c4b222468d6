package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"thriftly_backend/models"
	"thriftly_backend/utils"
)

const minPasswordLength = 6

type AuthSettings struct {
	JWTSecret string
	JWTTTL    time.Duration
	OTPTTL    time.Duration
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Phone    string
}

type ProfileInput struct {
	Username   string
	Bio        string
	ProfilePic string // empty keeps the current picture
}

// PublicProfile is what anyone can see about a seller.
type PublicProfile struct {
	User     models.PublicUser    `json:"user"`
	Listings []models.Product     `json:"listings"`
	Rating   models.RatingSummary `json:"rating"`
	Follows  models.FollowCounts  `json:"follows"`
}

// UserService covers registration, login, the one-time-code flows and
// profile management.
type UserService struct {
	db     *gorm.DB
	mailer Mailer
	auth   AuthSettings
	now    func() time.Time
}

func NewUserService(db *gorm.DB, mailer Mailer, auth AuthSettings) *UserService {
	return &UserService{
		db:     db,
		mailer: mailer,
		auth:   auth,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified account and mails it a one-time code.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = utils.CleanText(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email and password are required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, models.NewValidationError(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, models.NewStorageError("check email", err)
	}
	if count > 0 {
		return nil, models.NewValidationError("Email already exists")
	}
	if err := db.Model(&models.User{}).Where("username = ?", in.Username).Count(&count).Error; err != nil {
		return nil, models.NewStorageError("check username", err)
	}
	if count > 0 {
		return nil, models.NewValidationError("Username already taken")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, models.NewStorageError("hash password", err)
	}
	otp, err := utils.GenerateOTP()
	if err != nil {
		return nil, models.NewStorageError("generate otp", err)
	}
	expires := s.now().Add(s.auth.OTPTTL)

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		Password:     hash,
		Role:         models.RoleUser,
		OTPCode:      &otp,
		OTPExpiresAt: &expires,
	}
	if in.Phone != "" {
		user.Phone = &in.Phone
	}
	if err := db.Create(user).Error; err != nil {
		return nil, models.NewStorageError("create user", err)
	}

	sendMail(ctx, s.mailer, user.Email, "Verify Account", fmt.Sprintf("Your OTP: %s", otp))
	return user, nil
}

// checkOTP loads the user by email and checks code against the stored one.
func (s *UserService) checkOTP(db *gorm.DB, email, code string, invalid string) (*models.User, error) {
	var user models.User
	err := db.Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewValidationError(invalid)
	}
	if err != nil {
		return nil, models.NewStorageError("load user", err)
	}
	if user.OTPCode == nil || *user.OTPCode != strings.TrimSpace(code) {
		return nil, models.NewValidationError(invalid)
	}
	if user.OTPExpiresAt != nil && s.now().After(*user.OTPExpiresAt) {
		return nil, models.NewValidationError("Code expired")
	}
	return &user, nil
}

func (s *UserService) Verify(ctx context.Context, email, code string) error {
	db := s.db.WithContext(ctx)
	user, err := s.checkOTP(db, email, code, "Invalid Code")
	if err != nil {
		return err
	}
	err = db.Model(user).Updates(map[string]interface{}{
		"is_verified":    true,
		"otp_code":       nil,
		"otp_expires_at": nil,
	}).Error
	if err != nil {
		return models.NewStorageError("verify user", err)
	}
	return nil
}

// Login checks the credentials of a verified account and issues a token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, models.NewAuthError("User not found")
	}
	if err != nil {
		return "", nil, models.NewStorageError("load user", err)
	}
	if !user.IsVerified {
		return "", nil, models.NewAuthError("Not Verified")
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return "", nil, models.NewAuthError("Wrong Password")
	}

	token, err := utils.GenerateJWT(user.ID, user.Username, user.Role, s.auth.JWTSecret, s.auth.JWTTTL)
	if err != nil {
		return "", nil, models.NewStorageError("sign token", err)
	}
	return token, &user, nil
}

func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return lookupError(err, "Email", "load user")
	}

	otp, err := utils.GenerateOTP()
	if err != nil {
		return models.NewStorageError("generate otp", err)
	}
	expires := s.now().Add(s.auth.OTPTTL)
	if err := db.Model(&user).Updates(map[string]interface{}{"otp_code": otp, "otp_expires_at": expires}).Error; err != nil {
		return models.NewStorageError("store otp", err)
	}

	sendMail(ctx, s.mailer, user.Email, "Reset Password", fmt.Sprintf("OTP: %s", otp))
	return nil
}

func (s *UserService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return models.NewValidationError(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}

	db := s.db.WithContext(ctx)
	user, err := s.checkOTP(db, email, code, "Invalid OTP")
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return models.NewStorageError("hash password", err)
	}
	err = db.Model(user).Updates(map[string]interface{}{
		"password":       hash,
		"otp_code":       nil,
		"otp_expires_at": nil,
	}).Error
	if err != nil {
		return models.NewStorageError("reset password", err)
	}
	return nil
}

func (s *UserService) Get(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, lookupError(err, "User", "load user")
	}
	return &user, nil
}

// UpdateProfile overwrites the user's profile; concurrent edits are last
// write wins.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*models.User, error) {
	in.Username = utils.CleanText(in.Username)
	in.Bio = utils.CleanText(in.Bio)
	if in.Username == "" {
		return nil, models.NewValidationError("Username is required")
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("username = ? AND id <> ?", in.Username, userID).Count(&count).Error; err != nil {
		return nil, models.NewStorageError("check username", err)
	}
	if count > 0 {
		return nil, models.NewValidationError("Username already taken")
	}

	updates := map[string]interface{}{"username": in.Username, "bio": in.Bio}
	if in.ProfilePic != "" {
		updates["profile_pic"] = in.ProfilePic
	}
	res := db.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return nil, models.NewStorageError("update profile", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("User")
	}
	return s.Get(ctx, userID)
}

func (s *UserService) PublicProfile(ctx context.Context, userID uint) (*PublicProfile, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	profile := &PublicProfile{User: user.Public(), Listings: []models.Product{}}
	err = db.Where("seller_id = ? AND is_sold = ?", userID, false).
		Order("created_at DESC, id DESC").
		Find(&profile.Listings).Error
	if err != nil {
		return nil, models.NewStorageError("load listings", err)
	}
	if profile.Rating, err = ratingSummary(db, userID); err != nil {
		return nil, models.NewStorageError("summarise reviews", err)
	}
	if profile.Follows, err = followCounts(db, userID); err != nil {
		return nil, models.NewStorageError("count follows", err)
	}
	return profile, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewStorageError("list users", err)
	}
	return users, nil
}

// DeleteUser removes an account and everything it owns in one transaction.
func (s *UserService) DeleteUser(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.User{}, userID)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewNotFoundError("User")
		}

		var productIDs []uint
		if err := tx.Model(&models.Product{}).Where("seller_id = ?", userID).Pluck("id", &productIDs).Error; err != nil {
			return err
		}
		if err := deleteProductsTx(tx, productIDs); err != nil {
			return err
		}

		var storyIDs []uint
		if err := tx.Model(&models.Story{}).Where("user_id = ?", userID).Pluck("id", &storyIDs).Error; err != nil {
			return err
		}
		if err := deleteStoriesTx(tx, storyIDs); err != nil {
			return err
		}

		ownComments := tx.Model(&models.StoryComment{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("comment_id IN (?)", ownComments).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}

		scoped := []struct {
			model interface{}
			where string
		}{
			{&models.StoryComment{}, "user_id = ?"},
			{&models.StoryLike{}, "user_id = ?"},
			{&models.CommentLike{}, "user_id = ?"},
			{&models.Report{}, "reporter_id = ?"},
			{&models.WishlistItem{}, "user_id = ?"},
			{&models.Offer{}, "buyer_id = ?"},
			{&models.Order{}, "buyer_id = ?"},
			{&models.Payment{}, "user_id = ?"},
			{&models.Review{}, "reviewer_id = ? OR seller_id = ?"},
			{&models.Follow{}, "follower_id = ? OR following_id = ?"},
			{&models.Message{}, "sender_id = ? OR receiver_id = ?"},
			{&models.Notification{}, "user_id = ?"},
		}
		for _, sc := range scoped {
			args := []interface{}{userID}
			if strings.Count(sc.where, "?") == 2 {
				args = append(args, userID)
			}
			if err := tx.Where(sc.where, args...).Delete(sc.model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.User{}, userID).Error
	})
	if err != nil {
		return txError(err, "delete user")
	}
	return nil
}
