package services

import (
	"context"
	"fmt"
	"strings"

	"thriftly_backend/models"
	"thriftly_backend/utils"
)

// ContactService forwards customer-care requests to the site admin.
type ContactService struct {
	mailer     Mailer
	adminEmail string
}

func NewContactService(mailer Mailer, adminEmail string) *ContactService {
	return &ContactService{mailer: mailer, adminEmail: adminEmail}
}

func (s *ContactService) Send(ctx context.Context, name, email, message string) error {
	name = utils.CleanText(name)
	email = strings.TrimSpace(email)
	message = utils.CleanText(message)
	if name == "" || email == "" || message == "" {
		return models.NewValidationError("Name, email and message are required")
	}

	sendMail(ctx, s.mailer, s.adminEmail,
		fmt.Sprintf("📢 Support Request from %s", name),
		fmt.Sprintf("From: %s\n\nMessage:\n%s", email, message))
	return nil
}
