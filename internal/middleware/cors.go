package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows browser clients from allowedOrigins. An empty list or "*"
// allows any origin. Origins given without a scheme match both http and
// https.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", UserIDHeader},
		AllowWebSockets: true,
		MaxAge:          12 * time.Hour,
	}

	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
		case o == "*":
			config.AllowAllOrigins = true
		case strings.Contains(o, "://"):
			config.AllowOrigins = append(config.AllowOrigins, o)
		default:
			config.AllowOrigins = append(config.AllowOrigins, "http://"+o, "https://"+o)
		}
	}
	if config.AllowAllOrigins || len(config.AllowOrigins) == 0 {
		config.AllowAllOrigins = true
		config.AllowOrigins = nil
	}

	return cors.New(config)
}
