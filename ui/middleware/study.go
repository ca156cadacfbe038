package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"studykit/domain/core"
	"studykit/internal/errors"
)

// StudyKey is the context key Study stores the parsed name under.
const StudyKey = "study"

// Study validates the :study path segment and stores it for handlers.
// Names that could escape a study directory never reach a handler.
func Study() gin.HandlerFunc {
	return func(c *gin.Context) {
		name, err := core.ParseStudyName(c.Param("study"))
		if err != nil {
			log.Printf("[Study] rejected %q: %v", c.Param("study"), err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
				"code":  errors.CodeInvalidInput,
			})
			return
		}
		c.Set(StudyKey, name)
		c.Next()
	}
}

// StudyName returns the name Study stored, or "" outside a study route.
func StudyName(c *gin.Context) core.StudyName {
	v, ok := c.Get(StudyKey)
	if !ok {
		return ""
	}
	name, _ := v.(core.StudyName)
	return name
}
