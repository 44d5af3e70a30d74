package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	h "smartevents/internal/delivery/http/helpers"

	"github.com/redis/go-redis/v9"
)

const (
	// IdempotencyKeyHeader names the client-chosen key of a retryable request.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayedHeader is set to "true" on responses served from the cache.
	IdempotentReplayedHeader = "Idempotent-Replayed"

	DefaultIdempotencyTTL  = 24 * time.Hour
	defaultProcessingTTL   = 2 * time.Minute
	idempotencyKeyPrefix   = "idempotency:"
	maxIdempotencyKeyBytes = 255
)

type idempotencyStatus string

const (
	idempotencyProcessing idempotencyStatus = "processing"
	idempotencyCompleted  idempotencyStatus = "completed"
)

// idempotencyRecord is the JSON value stored under each key.
type idempotencyRecord struct {
	Status      idempotencyStatus `json:"status"`
	RequestHash string            `json:"request_hash"`
	StatusCode  int               `json:"status_code,omitempty"`
	Body        []byte            `json:"body,omitempty"`
}

// RedisClient is the subset of *redis.Client used by Idempotency.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig configures Idempotency.
type IdempotencyConfig struct {
	Redis RedisClient
	// TTL applies to completed records.
	TTL time.Duration
	// ProcessingTTL bounds how long an in-flight record blocks retries.
	ProcessingTTL time.Duration
	Logger        *slog.Logger
}

// Idempotency replays the stored response of a request that carries an
// Idempotency-Key already seen for the same user. Keys are scoped per
// authenticated user, so it must run after RequireAuth. Requests without the
// header pass through. Reusing a key with a different body is a 422, a key
// whose first request is still running is a 409. 5xx responses are not
// stored so the client can retry. Redis errors fail open.
func Idempotency(cfg IdempotencyConfig) func(http.HandlerFunc) http.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultIdempotencyTTL
	}
	if cfg.ProcessingTTL <= 0 {
		cfg.ProcessingTTL = defaultProcessingTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyBytes {
				h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "idempotency key too long")
				return
			}
			userID, _ := UserIDFromContext(r.Context())

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.MaxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					h.WriteJSONError(w, http.StatusRequestEntityTooLarge, h.ErrCodeBadRequest, "request body too large")
					return
				}
				h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "unreadable body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			redisKey := idempotencyKeyPrefix + userID + ":" + key
			hash := requestHash(r, body)

			rec := &idempotencyRecord{Status: idempotencyProcessing, RequestHash: hash}
			data, _ := json.Marshal(rec)
			claimed, err := cfg.Redis.SetNX(ctx, redisKey, data, cfg.ProcessingTTL).Result()
			if err != nil {
				cfg.Logger.WarnContext(ctx, "idempotency store unavailable", "err", err)
				next(w, r)
				return
			}
			if !claimed {
				replayIdempotent(ctx, w, cfg, redisKey, hash, next, r)
				return
			}

			rw := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
			next(rw, r)

			// Response is written; persist even if the client went away.
			saveCtx := context.WithoutCancel(ctx)
			if rw.status >= http.StatusInternalServerError {
				if err := cfg.Redis.Del(saveCtx, redisKey).Err(); err != nil {
					cfg.Logger.WarnContext(ctx, "release idempotency key", "err", err)
				}
				return
			}
			rec.Status = idempotencyCompleted
			rec.StatusCode = rw.status
			rec.Body = rw.body.Bytes()
			data, _ = json.Marshal(rec)
			if err := cfg.Redis.Set(saveCtx, redisKey, data, cfg.TTL).Err(); err != nil {
				cfg.Logger.WarnContext(ctx, "store idempotent response", "err", err)
			}
		}
	}
}

func replayIdempotent(ctx context.Context, w http.ResponseWriter, cfg IdempotencyConfig, redisKey, hash string, next http.HandlerFunc, r *http.Request) {
	raw, err := cfg.Redis.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SetNX and Get.
		h.WriteJSONError(w, http.StatusConflict, h.ErrCodeInProgress, "request with this idempotency key is in progress")
		return
	}
	if err != nil {
		cfg.Logger.WarnContext(ctx, "idempotency store unavailable", "err", err)
		next(w, r)
		return
	}
	var rec idempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		cfg.Logger.WarnContext(ctx, "corrupt idempotency record", "key", redisKey, "err", err)
		next(w, r)
		return
	}
	if rec.RequestHash != hash {
		h.WriteJSONError(w, http.StatusUnprocessableEntity, h.ErrCodeValidation, "idempotency key already used with a different request")
		return
	}
	if rec.Status != idempotencyCompleted {
		h.WriteJSONError(w, http.StatusConflict, h.ErrCodeInProgress, "request with this idempotency key is in progress")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(IdempotentReplayedHeader, "true")
	w.WriteHeader(rec.StatusCode)
	_, _ = w.Write(rec.Body)
}

func requestHash(r *http.Request, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(r.Method))
	sum.Write([]byte(r.URL.Path))
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}

// capturingWriter tees the response body so it can be stored.
type capturingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *capturingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}
