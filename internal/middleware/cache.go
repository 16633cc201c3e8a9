package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore disables client and proxy caching. Progress and submission
// responses must never be served stale.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
