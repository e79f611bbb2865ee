package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/larrykluger/push-notifications-docusign/internal/dispatch"
	"github.com/larrykluger/push-notifications-docusign/internal/envelope"
)

const maxBodyBytes = 64 << 10

// jsonPayload marks which keys a JSON body actually carried.
type jsonPayload struct {
	Email     *string `json:"email"`
	Password  *string `json:"pw"`
	NotifyURL *string `json:"notify_url"`
}

// Dispatch decodes the operation and its payload and writes the dispatcher's
// envelope as the only response body.
func (h *Handler) Dispatch(c *gin.Context) {
	call, err := decodeCall(c)
	if err != nil {
		h.log.Warn("unreadable request body", zap.Error(err))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			envelope.Write(c, envelope.TooLarge(tooLarge.Limit))
			return
		}
		envelope.Write(c, envelope.Fault(err))
		return
	}
	envelope.Write(c, h.dispatcher.Handle(c.Request.Context(), call))
}

// decodeCall reads the operation name from the path, query or form and the
// payload from the form, then lets keys present in a JSON body override it.
// A body that is not JSON simply contributes nothing. Bodies over
// maxBodyBytes fail with *http.MaxBytesError.
func decodeCall(c *gin.Context) (*dispatch.Call, error) {
	var body []byte
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	call := &dispatch.Call{
		Op: c.Param("op"),
		Payload: dispatch.Payload{
			Email:     formValue(c, "email"),
			Password:  formValue(c, "pw"),
			NotifyURL: formValue(c, "notify_url"),
		},
		Jar: c,
	}
	if call.Op == "" {
		call.Op = formValue(c, "op")
	}

	var j jsonPayload
	if len(body) > 0 && binding.JSON.BindBody(body, &j) == nil {
		if j.Email != nil {
			call.Payload.Email = *j.Email
		}
		if j.Password != nil {
			call.Payload.Password = *j.Password
		}
		if j.NotifyURL != nil {
			call.Payload.NotifyURL = *j.NotifyURL
		}
	}
	return call, nil
}

func formValue(c *gin.Context, key string) string {
	if v, ok := c.GetPostForm(key); ok {
		return v
	}
	return c.Query(key)
}
