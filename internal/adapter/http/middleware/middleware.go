package middleware

import (
	"bytes"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"zkvault/internal/core/ports"
	"zkvault/pkg/apperror"
	"zkvault/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Header names for issuer HMAC authentication
	HeaderAccessKey = "X-Issuer-Access-Key"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"

	HeaderRequestID = "X-Request-ID"

	// Max timestamp drift allowed (60 seconds)
	maxTimestampDrift = 60 * time.Second

	// Nonce TTL (120 seconds)
	nonceTTL = 120 * time.Second

	issuerNonceScope = "issuer"

	// Context keys
	CtxAccount    = "account"
	CtxIssuer     = "issuer"
	CtxRequestID  = "request_id"
	CtxResourceID = "resource_id"
	CtxErrorCode  = "error_code"
)

// IssuerCredentials are the shared HMAC credentials of the token issuer.
type IssuerCredentials struct {
	AccessKey string
	Secret    string
}

// IssuerAuth creates a middleware that verifies HMAC-SHA256 signed issuer
// requests. Pipeline: Check timestamp -> Check access key -> Verify
// signature -> Consume nonce. With no configured access key every request
// is refused.
func IssuerAuth(
	creds IssuerCredentials,
	sigSvc ports.SignatureService,
	nonceStore ports.NonceStore,
	log zerolog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		accessKey := c.GetHeader(HeaderAccessKey)
		signature := c.GetHeader(HeaderSignature)
		timestampStr := c.GetHeader(HeaderTimestamp)
		nonce := c.GetHeader(HeaderNonce)

		if accessKey == "" || signature == "" || timestampStr == "" || nonce == "" {
			abort(c, apperror.ErrInvalidAccessKey())
			return
		}

		timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
		if err != nil {
			abort(c, apperror.ErrTimestampExpired())
			return
		}
		now := time.Now().Unix()
		if math.Abs(float64(now-timestamp)) > maxTimestampDrift.Seconds() {
			abort(c, apperror.ErrTimestampExpired())
			return
		}

		if creds.AccessKey == "" || accessKey != creds.AccessKey {
			abort(c, apperror.ErrInvalidAccessKey())
			return
		}

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abort(c, apperror.Validation("cannot read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		canonical := sigSvc.BuildCanonicalString(
			c.Request.Method,
			c.Request.URL.Path,
			timestamp,
			nonce,
			bodyBytes,
		)
		if !sigSvc.Verify(creds.Secret, canonical, signature) {
			abort(c, apperror.ErrInvalidSignature())
			return
		}

		// Nonces are consumed only by correctly signed requests.
		isNew, err := nonceStore.CheckAndSet(c.Request.Context(), issuerNonceScope, nonce, nonceTTL)
		if err != nil {
			log.Error().Err(err).Msg("nonce store unavailable")
			abort(c, apperror.InternalError(err))
			return
		}
		if !isNew {
			abort(c, apperror.ErrNonceUsed())
			return
		}

		c.Set(CtxIssuer, accessKey)
		c.Next()
	}
}

// JWTAuth creates a middleware that validates bearer tokens and puts the
// caller's account in the context.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenStr == "" {
			abort(c, apperror.ErrInvalidToken())
			return
		}

		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			log.Debug().Err(err).Msg("token rejected")
			abort(c, apperror.ErrInvalidToken())
			return
		}

		c.Set(CtxAccount, claims.Account)
		c.Next()
	}
}

// Account returns the authenticated caller set by JWTAuth.
func Account(c *gin.Context) (common.Address, bool) {
	v, exists := c.Get(CtxAccount)
	if !exists {
		return common.Address{}, false
	}
	account, ok := v.(common.Address)
	return account, ok
}

// RequestID propagates the client's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		if account, ok := Account(c); ok {
			event = event.Str("account", account.Hex())
		}
		event.
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
					"request_id": c.GetString(CtxRequestID),
				})
			}
		}()
		c.Next()
	}
}

// MaxBodySize caps the request body. Reads past the limit fail, which
// binding reports as a validation error.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}
