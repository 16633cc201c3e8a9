package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// DraftAnswersKey returns the cache key for a student's draft answers on a material
func (r *CacheKeyStruct) DraftAnswersKey(materialID string, studentID int) string {
	return fmt.Sprintf("student:%d:material:%s:answers", studentID, materialID)
}

// DraftStartKey returns the cache key for a student's quiz start time on a material
func (r *CacheKeyStruct) DraftStartKey(materialID string, studentID int) string {
	return fmt.Sprintf("student:%d:material:%s:start_time", studentID, materialID)
}

// QuizPayloadKey returns the cache key for a quiz's student-facing payload
func (r *CacheKeyStruct) QuizPayloadKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:payload", quizID)
}

// QuizAnswerKeyKey returns the cache key for a quiz's answer key hash
func (r *CacheKeyStruct) QuizAnswerKeyKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:key", quizID)
}

// QuizPointsKey returns the cache key for a quiz's per-question points hash
func (r *CacheKeyStruct) QuizPointsKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:points", quizID)
}

// MaterialTimeLimitKey returns the cache key for a material's time limit (minutes)
func (r *CacheKeyStruct) MaterialTimeLimitKey(materialID string) string {
	return fmt.Sprintf("material:%s:time_limit", materialID)
}

// MaterialMonitorChannel returns the Redis PubSub channel name for a material monitor
func (r *CacheKeyStruct) MaterialMonitorChannel(materialID string) string {
	return fmt.Sprintf("material:%s:monitor", materialID)
}

var CacheKey = NewCacheKeyStruct()
