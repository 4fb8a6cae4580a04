package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/sales/internal/service/idempotency"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128
)

// captureWriter дублирует тело ответа, чтобы сохранить его под ключом идемпотентности.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idempotent повторяет сохранённый ответ для запроса с уже использованным Idempotency-Key.
// Запросы без заголовка выполняются как обычно.
func (s *Server) idempotent() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
		if s.deps.Idempotency == nil || key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			abortWithMessage(c, http.StatusBadRequest, "Idempotency-Key is too long.")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abortWithMessage(c, http.StatusBadRequest, "Invalid request body.")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		var subject string
		if identity, ok := identityFrom(c); ok {
			subject = identity.UserID
		}
		hash := idempotency.RequestHash([]byte(c.Request.Method), []byte(c.FullPath()), []byte(subject), body)

		ctx := c.Request.Context()
		cached, replay, err := s.deps.Idempotency.Begin(ctx, key, hash)
		if err != nil {
			s.abortWithError(c, err)
			return
		}
		if replay {
			c.Header(headerReplayed, "true")
			c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
			c.Abort()
			return
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer

		finished := false
		defer func() {
			resp := idempotency.Response{Status: writer.Status(), Body: writer.body.Bytes()}
			if !finished {
				// Обработчик упал с паникой: recovery ответит 500 уже после нас.
				resp = idempotency.Response{Status: http.StatusInternalServerError, Body: internalErrorBody}
			}
			s.deps.Idempotency.Complete(context.WithoutCancel(ctx), key, resp)
		}()

		c.Next()
		finished = true
	}
}
