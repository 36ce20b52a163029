package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AdminSessionKey returns the cache key holding an admin's current JWT id
func (r *CacheKeyStruct) AdminSessionKey(adminID int) string {
	return fmt.Sprintf("admin:%d:session", adminID)
}

// ExamSessionKey returns the cache key for a student's live session snapshot
func (r *CacheKeyStruct) ExamSessionKey(studentID string) string {
	return fmt.Sprintf("student:%s:exam_session", studentID)
}

// ResumeKey returns the cache key for a device's resume pointer
func (r *CacheKeyStruct) ResumeKey(deviceID string) string {
	return fmt.Sprintf("device:%s:resume", deviceID)
}

// AdmissionKey returns the cache key for a validated, not yet started token
func (r *CacheKeyStruct) AdmissionKey(token string) string {
	return fmt.Sprintf("token:%s:admission", token)
}

// MonitorChannel returns the Redis PubSub channel name for the live monitor
func (r *CacheKeyStruct) MonitorChannel() string {
	return "exam:monitor"
}

var CacheKey = NewCacheKeyStruct()
