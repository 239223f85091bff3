package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"campaignhub-botgateway/services/testutil"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func probe(t *testing.T, svc HealthService, path string) (int, Health) {
	t.Helper()
	r := gin.New()
	r.GET("/healthz", svc.Liveness)
	r.GET("/readyz", svc.Readiness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var out Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func TestLiveness(t *testing.T) {
	code, out := probe(t, ProvideHealth(HealthParams{}), "/healthz")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, statusHealthy, out.Status)
}

func TestReadiness_DatabaseOnly(t *testing.T) {
	db := testutil.NewTestDB(t)

	code, out := probe(t, ProvideHealth(HealthParams{DB: db}), "/readyz")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, out.Deps, 1)
	require.Equal(t, "sqlite", out.Deps[0].Name)
}

func TestReadiness_RedisDown(t *testing.T) {
	db := testutil.NewTestDB(t)
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	code, out := probe(t, ProvideHealth(HealthParams{DB: db, Redis: rdb}), "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, statusUnhealthy, out.Status)
	require.Len(t, out.Deps, 2)

	byName := map[string]Dependency{}
	for _, d := range out.Deps {
		byName[d.Name] = d
	}
	require.Equal(t, statusHealthy, byName["sqlite"].Status)
	require.Equal(t, statusUnhealthy, byName["redis"].Status)
}
