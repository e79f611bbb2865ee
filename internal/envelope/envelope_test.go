package envelope

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFaultMessage(t *testing.T) {
	testCases := []struct {
		name     string
		in       string
		expected string
	}{
		{name: "context prefix is stripped", in: "Context: details", expected: "details"},
		{name: "only the first separator counts", in: "store: list subscriptions: connection refused", expected: "list subscriptions: connection refused"},
		{name: "no separator", in: "plain failure", expected: "plain failure"},
		{name: "colon without space", in: "a:b", expected: "a:b"},
		{name: "empty after separator", in: "ctx: ", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, FaultMessage(tc.in))
		})
	}
}

func TestConstructors(t *testing.T) {
	fault := Fault(errors.New("Context: details"))
	assert.Equal(t, http.StatusBadRequest, fault.Status)
	assert.Equal(t, "details", fault.Msg)
	assert.Empty(t, fault.BadData)
	assert.NotNil(t, fault.BadData)

	ni := NotImplemented()
	assert.Equal(t, http.StatusNotImplemented, ni.Status)
	assert.NotNil(t, ni.BadData)

	tl := TooLarge(65536)
	assert.Equal(t, http.StatusRequestEntityTooLarge, tl.Status)
	assert.Equal(t, "request body exceeds 65536 bytes", tl.Msg)
	assert.NotNil(t, tl.BadData)

	inv := Invalid("Please enter your email address", "email")
	assert.Equal(t, http.StatusOK, inv.Status)
	assert.Equal(t, []string{"email"}, inv.BadData)
}

func TestWrite(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Write(c, Envelope{Status: http.StatusNotImplemented, Msg: "Bad op"})

	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.JSONEq(t, `{"api":true,"bad_data":[],"msg":"Bad op"}`, w.Body.String())
}

func TestWrite_DataIsOmittedWhenEmpty(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Write(c, OK("ok", map[string]int{"updated": 2}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"api":true,"bad_data":[],"msg":"ok","data":{"updated":2}}`, w.Body.String())
}
