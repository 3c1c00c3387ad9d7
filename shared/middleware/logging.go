package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware logs one line per request once the handler chain is done.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		userID, _ := GetUserID(c)
		log.Printf("%s %s -> %d (%s) user=%q", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start), userID)
	}
}
