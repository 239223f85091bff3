package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"campaignhub-botgateway/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Error struct {
		Code    errutil.CoreStatus `json:"code"`
		Message string             `json:"message"`
	} `json:"error"`
}

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	r := gin.New()
	r.Use(Error())
	r.GET("/x", h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	var body envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestError_RendersBaseError(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		_ = c.Error(errutil.Unauthorized("invalid webhook secret", nil))
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, errutil.StatusUnauthorized, body.Error.Code)
	require.Equal(t, "invalid webhook secret", body.Error.Message)
}

func TestError_PlainErrorIsInternal(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, errutil.StatusInternal, body.Error.Code)
	require.NotContains(t, w.Body.String(), "boom")
}

func TestError_WrittenResponseUntouched(t *testing.T) {
	w, _ := serve(t, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		_ = c.Error(errutil.NotFound("late", nil))
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ok":true}`, w.Body.String())
}
