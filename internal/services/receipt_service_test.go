package services

import (
	"context"
	"errors"
	"testing"

	"github.com/AnshRaj112/converse-backend/internal/models"
	"github.com/google/uuid"
)

func TestAcknowledgeMessageRejectsUnknownStatus(t *testing.T) {
	for _, status := range []string{"", "seen", "SENT", "Read"} {
		err := AcknowledgeMessage(context.Background(), uuid.New(), uuid.New(), models.ReceiptStatus(status))
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("status %q: expected validation error, got %v", status, err)
		}
	}
}
