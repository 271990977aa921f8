package ginserver

import (
	"strings"

	gin "github.com/gin-gonic/gin"
)

// ActorHeader carries the caller's user id, set by the trusted gateway in front of the API.
const ActorHeader = "X-User-ID"

const actorKey = "actor_id"

func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(ActorHeader))
		if id == "" {
			abortWithError(c, errMissingActor)
			return
		}
		c.Set(actorKey, id)
		c.Next()
	}
}

func actorID(c *gin.Context) string {
	return c.GetString(actorKey)
}
