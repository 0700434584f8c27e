package config

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/model"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CategorySetKey returns the cache key for one category question set of a session role
func (r *CacheKeyStruct) CategorySetKey(sessionID uuid.UUID, roleID int, category model.Category) string {
	return fmt.Sprintf("session:%s:role:%d:category:%s", sessionID, roleID, category)
}

// RoleSetsKey returns the cache key for every category question set of a session role
func (r *CacheKeyStruct) RoleSetsKey(sessionID uuid.UUID, roleID int) string {
	return fmt.Sprintf("session:%s:role:%d:sets", sessionID, roleID)
}

// SessionRolePattern matches every key cached for a session role
func (r *CacheKeyStruct) SessionRolePattern(sessionID uuid.UUID, roleID int) string {
	return fmt.Sprintf("session:%s:role:%d:*", sessionID, roleID)
}

// QuestionKey returns the cache key for a question's content
func (r *CacheKeyStruct) QuestionKey(questionID uuid.UUID) string {
	return fmt.Sprintf("question:%s", questionID)
}

var CacheKey = NewCacheKeyStruct()
