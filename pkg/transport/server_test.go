package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redlance/redlance/pkg/agentloop"
	"github.com/redlance/redlance/pkg/config"
	"github.com/redlance/redlance/pkg/events"
	"github.com/redlance/redlance/pkg/execengine"
	"github.com/redlance/redlance/pkg/finding"
	"github.com/redlance/redlance/pkg/llmprovider"
	"github.com/redlance/redlance/pkg/masking"
	"github.com/redlance/redlance/pkg/models"
	"github.com/redlance/redlance/pkg/router"
	"github.com/redlance/redlance/pkg/scan"
	"github.com/redlance/redlance/pkg/storage"
	"github.com/redlance/redlance/pkg/toolbox"
)

type stubProvider struct{}

func (stubProvider) Complete(_ context.Context, _ []llmprovider.Message, _ []llmprovider.FunctionSchema, _ llmprovider.Config) (llmprovider.ProviderResponse, error) {
	return llmprovider.ProviderResponse{
		Kind:          llmprovider.ResponseFunctionCall,
		FunctionName:  "submit_final_assessment",
		ArgumentsJSON: `{"summary":"nothing notable found"}`,
		TokensIn:      10,
		TokensOut:     10,
	}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := toolbox.NewRegistry()
	engine := execengine.NewEngine(1, 10, 4, 100*time.Millisecond)
	normalizer := finding.NewNormalizer()
	providers := &llmprovider.Tiers{Fast: stubProvider{}, Deep: stubProvider{}}
	bus := events.NewBus(64, time.Minute)
	masker := masking.NewService(true)

	loop := agentloop.NewLoop(
		registry, engine, normalizer, providers, config.ProvidersConfig{},
		router.Thresholds{FindingThreshold: 20, SubdomainThreshold: 100}, nil,
		bus, masker, config.LoopConfig{MaxIterations: 5, MaxScanDuration: 5 * time.Second, MaxFixupRetries: 1}, nil,
	)
	store := storage.NewMemoryStore()
	controller := scan.NewController(store, loop, bus, "test-pod", scan.OrphanConfig{
		CheckInterval: time.Minute, Threshold: time.Hour,
	})

	return NewServer(controller, bus, registry)
}

func TestHealthEndpointReturnsHealthy(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestToolCatalogEndpointListsRegisteredTools(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var out []toolDescriptorJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out)
	for _, d := range out {
		assert.NotEmpty(t, d.Name)
	}
}

func TestCreateScanEndpointRejectsMissingTarget(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/scans", strings.NewReader(`{"target":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateScanEndpointRejectsGarbageTarget(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/scans", strings.NewReader(`{"target":"not a target at all"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_target", body["kind"])
}

func TestCreateScanEndpointAcceptsValidTargetAndReportsStatus(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/scans", strings.NewReader(`{"target":"example.com","objective":"recon"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	scanID := created["scan_id"]
	require.NotEmpty(t, scanID)

	require.Eventually(t, func() bool {
		statusReq := httptest.NewRequest(http.MethodGet, "/scans/"+scanID, nil)
		statusRec := httptest.NewRecorder()
		s.Handler().ServeHTTP(statusRec, statusReq)
		if statusRec.Code != http.StatusOK {
			return false
		}
		var sc models.Scan
		if err := json.Unmarshal(statusRec.Body.Bytes(), &sc); err != nil {
			return false
		}
		return sc.Status == models.ScanStatusCompleted || sc.Status == models.ScanStatusFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetScanEndpointReturns404ForUnknownID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/scans/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelScanEndpointReturns404ForUnknownID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/scans/does-not-exist/cancel", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
