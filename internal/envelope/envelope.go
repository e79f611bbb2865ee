package envelope

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Envelope is the uniform API response used for both success and failure.
type Envelope struct {
	Status  int      `json:"-"`
	API     bool     `json:"api"`
	BadData []string `json:"bad_data"`
	Msg     string   `json:"msg"`
	Data    any      `json:"data,omitempty"`
}

// OK builds a 200 envelope.
func OK(msg string, data any) Envelope {
	return Envelope{Status: http.StatusOK, API: true, BadData: []string{}, Msg: msg, Data: data}
}

// Invalid builds a field validation envelope. Validation failures are
// reported with status 200 and the offending field names in bad_data.
func Invalid(msg string, fields ...string) Envelope {
	if fields == nil {
		fields = []string{}
	}
	return Envelope{Status: http.StatusOK, API: true, BadData: fields, Msg: msg}
}

// Fault builds the 400 envelope for an error raised while serving an operation.
func Fault(err error) Envelope {
	return Envelope{Status: http.StatusBadRequest, API: true, BadData: []string{}, Msg: FaultMessage(err.Error())}
}

// NotImplemented builds the 501 envelope for an operation nobody owns.
func NotImplemented() Envelope {
	return Envelope{Status: http.StatusNotImplemented, API: true, BadData: []string{}, Msg: "Bad op"}
}

// TooLarge builds the 413 envelope for a request body over limit bytes.
func TooLarge(limit int64) Envelope {
	return Envelope{
		Status:  http.StatusRequestEntityTooLarge,
		API:     true,
		BadData: []string{},
		Msg:     fmt.Sprintf("request body exceeds %d bytes", limit),
	}
}

// Unavailable builds a 503 envelope.
func Unavailable(msg string) Envelope {
	return Envelope{Status: http.StatusServiceUnavailable, API: true, BadData: []string{}, Msg: msg}
}

// FaultMessage drops the leading "<context>: " from msg, keeping the text
// after the first separator. Messages without a separator are returned as is.
func FaultMessage(msg string) string {
	if _, rest, found := strings.Cut(msg, ": "); found {
		return rest
	}
	return msg
}

// Write sends env as the JSON body of the response.
func Write(c *gin.Context, env Envelope) {
	status := env.Status
	if status == 0 {
		status = http.StatusOK
	}
	if env.BadData == nil {
		env.BadData = []string{}
	}
	env.API = true
	c.JSON(status, env)
}
