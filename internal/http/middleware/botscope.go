// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the bot a request is acting on. Every catalog, cart,
// and conversation row is scoped by bot ID; channel adapters (WhatsApp,
// Telegram, web widget) identify the store they serve with the X-Bot-ID
// header, and single-tenant deployments fall back to the configured default.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// botIDKey is the Gin context key under which the resolved bot ID is stored.
	botIDKey = "botID"
	// botIDHeader identifies the store a channel adapter is serving.
	botIDHeader = "X-Bot-ID"
)

// BotScope resolves the bot ID for the request from the X-Bot-ID header,
// falling back to defaultBotID, and stores it in the Gin context under
// "botID". Handlers read it via BotFrom; the access logger and the rate
// limiter key off it too.
func BotScope(defaultBotID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		bot := strings.TrimSpace(c.GetHeader(botIDHeader))
		if bot == "" {
			bot = defaultBotID
		}
		c.Set(botIDKey, bot)
		c.Next()
	}
}

// BotFrom returns the bot ID resolved by BotScope, or "" when the
// middleware did not run.
func BotFrom(c *gin.Context) string {
	if v, ok := c.Get(botIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
