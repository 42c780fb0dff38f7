package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
)

// Session is the redis-backed login state keyed by "Token:<token>".
type Session struct {
	OfficeId string `json:"office_id"`
	UserId   int    `json:"user_id"`
	UserName string `json:"user_name"`
}

func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}

		var session Session
		exists, err := config.GetRedisObject("Token:"+token, &session)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetOfficeIdInContext(ctx, session.OfficeId)
		ctx = utils.SetUserIdInContext(ctx, session.UserId)
		ctx = utils.SetUserNameInContext(ctx, session.UserName)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
