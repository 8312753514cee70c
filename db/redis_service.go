package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	gokitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-redis/redis/v8"
	"gradebook-server-go/gradebook"
	"gradebook-server-go/models"
)

const (
	sessionPrefix      = "session:"       // All keys of a session live under session:{id}:
	coursesSuffix      = ":courses"       // Hash: code -> course JSON
	courseOrderSuffix  = ":course_order"  // List: course codes in registration order
	studentsSuffix     = ":students"      // Hash: student ID -> student record JSON
	studentOrderSuffix = ":student_order" // List: student IDs in registration order
	metaSuffix         = ":meta"          // Hash: revision, savedAt
)

// RedisService mirrors one live gradebook session into Redis so that a
// restarted process can resume it. Keys expire after TTL and are removed
// when the session ends.
type RedisService struct {
	Client    *redis.Client
	Ctx       context.Context // Base context for change listeners
	SessionID string
	TTL       time.Duration

	logger    gokitlog.Logger
	mu        sync.Mutex
	lastSaved uint64
}

// NewRedisService creates a new RedisService for the given session
func NewRedisService(client *redis.Client, sessionID string, ttl time.Duration, logger gokitlog.Logger) *RedisService {
	if logger == nil {
		logger = gokitlog.NewNopLogger()
	}
	return &RedisService{
		Client:    client,
		Ctx:       context.Background(),
		SessionID: sessionID,
		TTL:       ttl,
		logger:    gokitlog.With(logger, "session", sessionID),
	}
}

func (s *RedisService) key(suffix string) string {
	return sessionPrefix + s.SessionID + suffix
}

func (s *RedisService) keys() []string {
	return []string{
		s.key(coursesSuffix),
		s.key(courseOrderSuffix),
		s.key(studentsSuffix),
		s.key(studentOrderSuffix),
		s.key(metaSuffix),
	}
}

// --- Save ---

// SaveSnapshot replaces the mirrored session with snap. Snapshots older
// than the last one saved are skipped.
func (s *RedisService) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastSaved != 0 && snap.Revision <= s.lastSaved {
		return nil
	}

	courses := make(map[string]interface{}, len(snap.Courses))
	courseOrder := make([]interface{}, 0, len(snap.Courses))
	for _, c := range snap.Courses {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode course %s: %w", c.Code, err)
		}
		courses[c.Code] = data
		courseOrder = append(courseOrder, c.Code)
	}

	students := make(map[string]interface{}, len(snap.Students))
	studentOrder := make([]interface{}, 0, len(snap.Students))
	for _, st := range snap.Students {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to encode student %s: %w", st.ID, err)
		}
		students[st.ID] = data
		studentOrder = append(studentOrder, st.ID)
	}

	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keys()...)
		if len(courses) > 0 {
			pipe.HSet(ctx, s.key(coursesSuffix), courses)
			pipe.RPush(ctx, s.key(courseOrderSuffix), courseOrder...)
		}
		if len(students) > 0 {
			pipe.HSet(ctx, s.key(studentsSuffix), students)
			pipe.RPush(ctx, s.key(studentOrderSuffix), studentOrder...)
		}
		pipe.HSet(ctx, s.key(metaSuffix), map[string]interface{}{
			"revision": snap.Revision,
			"savedAt":  time.Now().UTC().Format(time.RFC3339),
		})
		for _, k := range s.keys() {
			pipe.Expire(ctx, k, s.TTL)
		}
		return nil
	})
	if err != nil {
		level.Error(s.logger).Log("msg", "failed to save session", "revision", snap.Revision, "err", err)
		return fmt.Errorf("failed to save session to Redis: %w", err)
	}
	s.lastSaved = snap.Revision
	level.Debug(s.logger).Log("msg", "session saved", "revision", snap.Revision,
		"courses", len(snap.Courses), "students", len(snap.Students))
	return nil
}

// Attach mirrors every change of book into Redis
func (s *RedisService) Attach(book *gradebook.Book) {
	book.OnChange(func(snap models.Snapshot) {
		// Errors are logged by SaveSnapshot; the in-memory book stays authoritative.
		_ = s.SaveSnapshot(s.Ctx, snap)
	})
}

// --- Load ---

// LoadSnapshot reads the mirrored session. It returns nil when the session
// has nothing stored.
func (s *RedisService) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	meta, err := s.Client.HGetAll(ctx, s.key(metaSuffix)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get session meta from Redis: %w", err)
	}
	if len(meta) == 0 {
		return nil, nil // Not found
	}

	revision, err := strconv.ParseUint(meta["revision"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid session revision %q: %w", meta["revision"], err)
	}
	snap := &models.Snapshot{Revision: revision, Courses: []models.Course{}, Students: []models.StudentRecord{}}

	courseOrder, err := s.Client.LRange(ctx, s.key(courseOrderSuffix), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get course order from Redis: %w", err)
	}
	courses, err := s.Client.HGetAll(ctx, s.key(coursesSuffix)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get courses from Redis: %w", err)
	}
	for _, code := range courseOrder {
		raw, ok := courses[code]
		if !ok {
			level.Warn(s.logger).Log("msg", "course listed but not stored", "code", code)
			continue
		}
		var c models.Course
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("failed to decode course %s: %w", code, err)
		}
		snap.Courses = append(snap.Courses, c)
	}

	studentOrder, err := s.Client.LRange(ctx, s.key(studentOrderSuffix), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get student order from Redis: %w", err)
	}
	students, err := s.Client.HGetAll(ctx, s.key(studentsSuffix)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get students from Redis: %w", err)
	}
	for _, id := range studentOrder {
		raw, ok := students[id]
		if !ok {
			level.Warn(s.logger).Log("msg", "student listed but not stored", "id", id)
			continue
		}
		var rec models.StudentRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode student %s: %w", id, err)
		}
		snap.Students = append(snap.Students, rec)
	}
	return snap, nil
}

// Resume restores book from the mirrored session if one exists.
// It reports whether anything was restored.
func (s *RedisService) Resume(ctx context.Context, book *gradebook.Book) (bool, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}
	if err := book.Restore(*snap); err != nil {
		return false, fmt.Errorf("failed to restore session %s: %w", s.SessionID, err)
	}
	s.mu.Lock()
	s.lastSaved = snap.Revision
	s.mu.Unlock()
	level.Info(s.logger).Log("msg", "session resumed", "revision", snap.Revision,
		"courses", len(snap.Courses), "students", len(snap.Students))
	return true, nil
}

// DeleteSession removes every key of the session
func (s *RedisService) DeleteSession(ctx context.Context) error {
	if err := s.Client.Del(ctx, s.keys()...).Err(); err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	level.Info(s.logger).Log("msg", "session deleted")
	return nil
}

// --- Utility ---

// InitializeRedisClient creates a Redis client and checks the connection
func InitializeRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}
