package services

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"thriftly_backend/models"
	"thriftly_backend/utils"
)

// ChatService stores chat messages and derives conversations from them.
type ChatService struct {
	db *gorm.DB
}

func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db}
}

// AppendMessage persists a message from sender to receiver about a product.
// A nil error means the row is committed.
func (s *ChatService) AppendMessage(ctx context.Context, senderID, receiverID, productID uint, text string) (*models.Message, error) {
	text = utils.CleanText(text)
	if text == "" {
		return nil, models.NewValidationError("Message cannot be empty")
	}
	if senderID == receiverID {
		return nil, models.NewConflictError("You cannot message yourself")
	}

	db := s.db.WithContext(ctx)
	ok, err := exists(db, &models.User{}, receiverID)
	if err != nil {
		return nil, models.NewStorageError("check receiver", err)
	}
	if !ok {
		return nil, models.NewNotFoundError("User")
	}
	ok, err = exists(db, &models.Product{}, productID)
	if err != nil {
		return nil, models.NewStorageError("check product", err)
	}
	if !ok {
		return nil, models.NewNotFoundError("Product")
	}

	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		ProductID:  productID,
		Text:       text,
	}
	if err := db.Create(msg).Error; err != nil {
		return nil, models.NewStorageError("append message", err)
	}
	return msg, nil
}

// History returns every message between a and b about productID, oldest
// first.
func (s *ChatService) History(ctx context.Context, a, b, productID uint) ([]models.Message, error) {
	messages := []models.Message{}
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Where("product_id = ?", productID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, models.NewStorageError("load history", err)
	}
	return messages, nil
}

type conversationKey struct {
	OtherID   uint
	ProductID uint
	LastID    uint
}

// ConversationsFor lists one entry per {other user, product} the user has
// exchanged messages about, most recent first. Direction is irrelevant.
func (s *ChatService) ConversationsFor(ctx context.Context, userID uint) ([]models.Conversation, error) {
	db := s.db.WithContext(ctx)

	var keys []conversationKey
	err := db.Model(&models.Message{}).
		Select("CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS other_id, product_id, MAX(id) AS last_id", userID).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Group("other_id, product_id").
		Scan(&keys).Error
	if err != nil {
		return nil, models.NewStorageError("group conversations", err)
	}

	conversations := make([]models.Conversation, 0, len(keys))
	if len(keys) == 0 {
		return conversations, nil
	}

	lastIDs := make([]uint, 0, len(keys))
	userIDs := make([]uint, 0, len(keys))
	productIDs := make([]uint, 0, len(keys))
	for _, k := range keys {
		lastIDs = append(lastIDs, k.LastID)
		userIDs = append(userIDs, k.OtherID)
		productIDs = append(productIDs, k.ProductID)
	}

	var messages []models.Message
	if err := db.Where("id IN ?", lastIDs).Find(&messages).Error; err != nil {
		return nil, models.NewStorageError("load last messages", err)
	}
	var users []models.User
	if err := db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, models.NewStorageError("load conversation users", err)
	}
	var products []models.Product
	if err := db.Where("id IN ?", productIDs).Find(&products).Error; err != nil {
		return nil, models.NewStorageError("load conversation products", err)
	}

	byMessage := make(map[uint]models.Message, len(messages))
	for _, m := range messages {
		byMessage[m.ID] = m
	}
	byUser := make(map[uint]models.User, len(users))
	for _, u := range users {
		byUser[u.ID] = u
	}
	byProduct := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byProduct[p.ID] = p
	}

	sort.Slice(keys, func(i, j int) bool {
		ti, tj := byMessage[keys[i].LastID].CreatedAt, byMessage[keys[j].LastID].CreatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return keys[i].LastID > keys[j].LastID
	})

	for _, k := range keys {
		last := byMessage[k.LastID]
		other := byUser[k.OtherID]
		product := byProduct[k.ProductID]
		conversations = append(conversations, models.Conversation{
			RoomID:          models.RoomID(userID, k.OtherID, k.ProductID),
			OtherUserID:     k.OtherID,
			OtherUsername:   other.Username,
			OtherProfilePic: other.ProfilePic,
			ProductID:       k.ProductID,
			ProductTitle:    product.Title,
			ProductImageURL: product.ImageURL,
			LastMessage:     last.Text,
			LastSenderID:    last.SenderID,
			LastMessageAt:   last.CreatedAt,
		})
	}
	return conversations, nil
}
