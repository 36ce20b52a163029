package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/model"
)

func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	return page, perPage
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	return id, err == nil
}

// examTypeQuery reads ?type=. An empty value means no filter.
func examTypeQuery(c *gin.Context, key string) (model.ExamType, bool) {
	raw := c.Query(key)
	if raw == "" {
		return "", true
	}
	t, err := model.ParseExamType(raw)
	return t, err == nil
}
