package response

import "github.com/gin-gonic/gin"

// Success writes {"ok": true, ...fields}.
func Success(c *gin.Context, statusCode int, fields gin.H) {
	body := gin.H{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(statusCode, body)
}

// Error writes {"ok": false, "reason": reason, "message": message}.
func Error(c *gin.Context, statusCode int, reason string, message string) {
	c.JSON(statusCode, gin.H{
		"ok":      false,
		"reason":  reason,
		"message": message,
	})
}

// ErrorWithDetails is Error plus extra top-level fields such as locked_until.
func ErrorWithDetails(c *gin.Context, statusCode int, reason string, message string, details gin.H) {
	body := gin.H{
		"ok":      false,
		"reason":  reason,
		"message": message,
	}
	for k, v := range details {
		if _, reserved := body[k]; !reserved {
			body[k] = v
		}
	}
	c.JSON(statusCode, body)
}
