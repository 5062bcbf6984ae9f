package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/condoledger/pkg/period"
)

func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	return parseSnowflakeID(c.Param(name), "invalid_"+name)
}

func parseSnowflakeID(value, code string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return 0, newValidationError(code)
	}
	return parsed, nil
}

func parseOptionalSnowflakeID(value, code string) (snowflake.ID, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return parseSnowflakeID(value, code)
}

func parseOptionalDate(value, code string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := period.ParseDate(trimmed)
	if err != nil {
		return nil, newValidationError(code)
	}
	return &parsed, nil
}
