package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/idempotency"
	"perfume-store/internal/logger"
	"perfume-store/internal/responses"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxKeyLength      = 128
)

type bodyCapture struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyConfig controls how long keys are held.
type IdempotencyConfig struct {
	// TTL is how long a finished response is replayed.
	TTL time.Duration
	// PendingTTL bounds the in-progress marker, so a request that never
	// finishes releases its key long before TTL.
	PendingTTL time.Duration
}

const defaultPendingTTL = 30 * time.Second

func (cfg IdempotencyConfig) pendingTTL() time.Duration {
	pending := cfg.PendingTTL
	if pending <= 0 {
		pending = defaultPendingTTL
	}
	if cfg.TTL > 0 && pending > cfg.TTL {
		pending = cfg.TTL
	}
	return pending
}

// Idempotency replays the stored response when a client retries a write with
// the same Idempotency-Key. Requests without the header pass through, as do
// all requests when store is nil. Retryable upstream failures (502, 503, 504)
// and panics are forgotten so the client may retry them; a 500 is kept,
// because the write behind it may have happened.
func Idempotency(store idempotency.Store, cfg IdempotencyConfig, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := strings.TrimSpace(c.GetHeader(idempotencyHeader))
		if store == nil || clientKey == "" {
			c.Next()
			return
		}
		if len(clientKey) > maxKeyLength {
			responses.Error(c, log, apperrors.New(apperrors.CodeValidation, "Idempotency-Key is too long"))
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			responses.Error(c, log, apperrors.Wrap(apperrors.CodeValidation, err, "could not read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		requestHash := idempotency.HashRequest(body)
		key := idempotency.Key(callerScope(c), c.Request.Method, c.Request.URL.Path, clientKey)

		pending, _ := idempotency.Record{Pending: true, RequestHash: requestHash}.Encode()
		acquired, err := store.SetNX(ctx, key, pending, cfg.pendingTTL())
		if err != nil {
			responses.Error(c, log, apperrors.Wrap(apperrors.CodeDependency, err, "check idempotency"))
			return
		}
		if !acquired {
			replay(c, store, key, requestHash, log)
			return
		}

		forget := func() {
			delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := store.Del(delCtx, key); err != nil && log != nil {
				log.Error(ctx, "idempotency.release_failed", err)
			}
		}
		defer func() {
			if rec := recover(); rec != nil {
				forget()
				panic(rec)
			}
		}()

		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		status := capture.Status()
		if retryableStatus(status) {
			forget()
			return
		}

		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()

		record := idempotency.Record{
			Status:      status,
			ContentType: capture.Header().Get("Content-Type"),
			Body:        idempotency.EncodeBody(capture.body.Bytes()),
			RequestHash: requestHash,
		}
		encoded, err := record.Encode()
		if err == nil {
			err = store.Set(persistCtx, key, encoded, cfg.TTL)
		}
		if err != nil && log != nil {
			log.Error(ctx, "idempotency.persist_failed", err)
		}
	}
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func replay(c *gin.Context, store idempotency.Store, key, requestHash string, log *logger.Logger) {
	stored, err := store.Get(c.Request.Context(), key)
	if errors.Is(err, idempotency.ErrMiss) {
		responses.Error(c, log, apperrors.New(apperrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
		return
	}
	if err != nil {
		responses.Error(c, log, apperrors.Wrap(apperrors.CodeDependency, err, "check idempotency"))
		return
	}

	record, err := idempotency.DecodeRecord(stored)
	if err != nil {
		responses.Error(c, log, apperrors.Wrap(apperrors.CodeInternal, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != requestHash {
		responses.Error(c, log, apperrors.New(apperrors.CodeConflict, "Idempotency-Key reused with a different request"))
		return
	}
	if record.Pending {
		responses.Error(c, log, apperrors.New(apperrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
		return
	}

	c.Header(replayedHeader, "true")
	contentType := record.ContentType
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	c.Data(record.Status, contentType, record.DecodedBody())
	c.Abort()
}

func callerScope(c *gin.Context) string {
	if id, ok := Identity(c); ok {
		return id.UserID.Hex()
	}
	return "anonymous"
}
