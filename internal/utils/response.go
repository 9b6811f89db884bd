package utils

import "github.com/gin-gonic/gin"

// JSON writes data as the response body unchanged.
func JSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// Error writes {"error": msg} and stops the handler chain.
func Error(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{
		"error": msg,
	})
}
