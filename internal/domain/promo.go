package domain

import "time"

// Promo is an AI-written flash promotion for a catalog product.
type Promo struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	Description string    `json:"generated_description"`
	ChannelID   string    `json:"channel_id"`
	MessageID   string    `json:"message_id"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
