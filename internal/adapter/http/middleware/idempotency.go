package middleware

import (
	"bytes"
	"encoding/json"
	"time"

	"zkvault/internal/adapter/http/dto"
	"zkvault/internal/core/domain"
	"zkvault/internal/core/ports"
	"zkvault/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	idempotencyTTL = 24 * time.Hour
)

// bodyRecorder tees the response body so it can be cached.
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the cached response of a successful write when a
// request repeats its Idempotency-Key. Keys are scoped to the caller and
// the route. Requests without the header pass through untouched. Cache
// failures degrade to running the request.
func Idempotency(cache ports.IdempotencyCache, route string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if !dto.IsSafeID(key) {
			abort(c, apperror.Validation("Idempotency-Key must be 1-100 characters of [A-Za-z0-9_.-]"))
			return
		}

		caller, _ := Account(c)
		if issuer := c.GetString(CtxIssuer); issuer != "" {
			caller = common.Address{}
			key = issuer + "/" + key
		}
		cacheKey := domain.BuildIdempotencyKey(caller, route, key)

		raw, err := cache.Get(c.Request.Context(), cacheKey)
		if err != nil {
			log.Warn().Err(err).Str("route", route).Msg("idempotency lookup failed")
		} else if raw != nil {
			var cached domain.CachedResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				c.Header(HeaderReplayed, "true")
				c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
				c.Abort()
				return
			}
			log.Warn().Str("route", route).Msg("discarding unreadable idempotency entry")
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status < 200 || status >= 300 {
			return
		}
		payload, err := json.Marshal(domain.CachedResponse{Status: status, Body: rec.buf.Bytes()})
		if err != nil {
			return
		}
		if err := cache.Set(c.Request.Context(), cacheKey, payload, idempotencyTTL); err != nil {
			log.Warn().Err(err).Str("route", route).Msg("failed to cache idempotent response")
		}
	}
}
