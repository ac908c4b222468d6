package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"thriftly_backend/internal/metrics"
	"thriftly_backend/internal/testutil"
	"thriftly_backend/models"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishUser(ctx context.Context, userID uint, event string, data interface{}) error {
	return m.Called(ctx, userID, event, data).Error(0)
}

func (m *mockPublisher) Broadcast(ctx context.Context, event string, data interface{}) error {
	return m.Called(ctx, event, data).Error(0)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) EnqueueEmail(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

// sentMail records emails instead of sending them.
type sentMail struct {
	mu   sync.Mutex
	sent []mailRecord
}

type mailRecord struct {
	To, Subject, Body string
}

func (m *sentMail) EnqueueEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mailRecord{To: to, Subject: subject, Body: body})
	return nil
}

func (m *sentMail) last(t *testing.T) mailRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	db            *gorm.DB
	pub           *mockPublisher
	mailer        *mockMailer
	notifications *NotificationService
}

// newTestEnv wires services over a fresh database. Publisher and mailer
// accept any call unless a test registers a stricter expectation first.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pub := &mockPublisher{}
	pub.On("PublishUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	pub.On("Broadcast", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	mailer := &mockMailer{}
	mailer.On("EnqueueEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	db := testutil.NewTestDB(t)
	return &testEnv{
		db:            db,
		pub:           pub,
		mailer:        mailer,
		notifications: NewNotificationService(db, pub, metrics.Nop{}),
	}
}

func (e *testEnv) notificationsFor(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	var ns []models.Notification
	require.NoError(t, e.db.Where("user_id = ?", userID).Order("id ASC").Find(&ns).Error)
	return ns
}

// errMessage is the client-facing text of an AppError, or "" for anything else.
func errMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}
