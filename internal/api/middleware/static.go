package middleware

import "github.com/gin-gonic/gin"

// StaticAssetHeaders marks served uploads as immutable and readable from any origin.
func StaticAssetHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Del("Access-Control-Allow-Credentials")
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Cache-Control", "public, max-age=31536000")
		c.Next()
	}
}
