package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizBundleKey returns the cache key for a published quiz with its questions
// and answer key.
func (r *CacheKeyStruct) QuizBundleKey(quizID uuid.UUID) string {
	return fmt.Sprintf("quiz:%s:bundle", quizID)
}

var CacheKey = NewCacheKeyStruct()
