package services

import (
	"time"

	"github.com/AnshRaj112/converse-backend/internal/config"
)

// Tunables with production defaults; Configure overrides them from env config
// during bootstrap.
var (
	statusFanoutLimit = 500
	pageSizeLimit     = 100
	presenceTTL       = 2 * time.Minute
	jwtSecret         []byte
)

// Configure applies runtime configuration to the chat services.
// Call once from main before serving traffic.
func Configure(cfg *config.Config) {
	if cfg.StatusFanoutLimit > 0 {
		statusFanoutLimit = cfg.StatusFanoutLimit
	}
	if cfg.MessagePageSizeLimit > 0 {
		pageSizeLimit = cfg.MessagePageSizeLimit
	}
	if cfg.PresenceTTLSeconds > 0 {
		presenceTTL = time.Duration(cfg.PresenceTTLSeconds) * time.Second
	}
	jwtSecret = []byte(cfg.JWTSecret)
}
