package notifications

import "github.com/rugguard/rugguard-bot/internal/models"

// Notifier delivers operator alerts about conditions the bot cannot recover
// from on its own (permanent stream loss, repeated publish failures).
type Notifier interface {
	SendAlert(alert *models.Alert) error
}
