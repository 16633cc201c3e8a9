package session

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Store is a key-value cache local to the student's device. Writes must be
// synchronous; this store is the resilience fallback between successful
// remote syncs, so durability cannot wait for a debounce window.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

func answersKey(materialID string) string {
	return fmt.Sprintf("quiz_%s_answers", materialID)
}

func startTimeKey(materialID string) string {
	return fmt.Sprintf("quiz_%s_start_time", materialID)
}

// loadCachedAnswers reads and decodes the cached answer set. A missing or
// unparseable entry is treated as absence, never as an error.
func loadCachedAnswers(store Store, materialID string) map[string]string {
	raw, ok := store.Get(answersKey(materialID))
	if !ok || raw == "" {
		return nil
	}
	var answers map[string]string
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return nil
	}
	return answers
}

func storeAnswers(store Store, materialID string, answers map[string]string) {
	raw, err := json.Marshal(answers)
	if err != nil {
		return
	}
	store.Set(answersKey(materialID), string(raw))
}

// loadCachedStartTime reads the cached start time as epoch milliseconds.
// Corrupt values are treated as absence.
func loadCachedStartTime(store Store, materialID string) (int64, bool) {
	raw, ok := store.Get(startTimeKey(materialID))
	if !ok || raw == "" {
		return 0, false
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || millis <= 0 {
		return 0, false
	}
	return millis, true
}

func storeStartTime(store Store, materialID string, millis int64) {
	store.Set(startTimeKey(materialID), strconv.FormatInt(millis, 10))
}

func clearCache(store Store, materialID string) {
	store.Delete(answersKey(materialID))
	store.Delete(startTimeKey(materialID))
}

// MemoryStore is a map-backed Store. Suitable for tests and for hosts that
// do not provide their own persistence.
type MemoryStore struct {
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStore) Set(key, value string) {
	m.values[key] = value
}

func (m *MemoryStore) Delete(key string) {
	delete(m.values, key)
}
