package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rescuelink/internal/models"
	"rescuelink/internal/repositories/memory"
	"rescuelink/internal/services"
	"rescuelink/internal/utils"
	"rescuelink/pkg/logger"
	"rescuelink/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nullNotifier struct{}

func (nullNotifier) EventStateChanged(*models.SOSEvent) {}

type nullStorage struct{}

func (nullStorage) Upload(ctx context.Context, req *storage.UploadRequest) (*storage.UploadResponse, error) {
	return &storage.UploadResponse{Key: req.Key, URL: "http://files.local/" + req.Key}, nil
}
func (nullStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("not found")
}
func (nullStorage) Delete(ctx context.Context, key string) error { return nil }
func (nullStorage) GetURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return "", nil
}

func newTestRouter(events *memory.EventRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)

	svc := services.NewSOSService(events, memory.NewLedgerRepository(), nullStorage{}, nullNotifier{}, logger.NewNop())
	handler := NewSOSHandler(svc, logger.NewNop())

	router := gin.New()
	// Stand-in for the JWT middleware.
	router.Use(func(c *gin.Context) {
		c.Set(utils.ContextUserID, "user-1")
		c.Set(utils.ContextUserRole, utils.RoleUser)
	})
	router.POST("/sos", handler.RaiseSOS)
	router.GET("/sos/active", handler.GetActive)
	router.GET("/sos/:id", handler.GetEvent)
	router.PUT("/sos/:id/resolve", handler.Resolve)
	return router
}

func triggerBody() []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"emergency_type": "Medical",
		"profile": map[string]interface{}{
			"user_id": "ignored-by-handler",
			"name":    "Dana Reyes",
			"emergency_contacts": []map[string]string{
				{"name": "Sam", "phone": "+15550001111", "relationship": "sibling"},
			},
		},
		"location": map[string]float64{"latitude": 37.77, "longitude": -122.42},
	})
	return body
}

func TestRaiseSOSCreatesEvent(t *testing.T) {
	router := newTestRouter(memory.NewEventRepository())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sos", bytes.NewReader(triggerBody()))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, utils.StatusSuccess, resp.Status)

	data := resp.Data.(map[string]interface{})
	assert.NotEmpty(t, data["event_id"])
	assert.Equal(t, string(models.DeliveryStateQueued), data["delivery_state"])
	assert.Equal(t, true, data["created"])
}

func TestRaiseSOSRetriggerReturnsExistingEvent(t *testing.T) {
	router := newTestRouter(memory.NewEventRepository())

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/sos", bytes.NewReader(triggerBody())))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/sos", bytes.NewReader(triggerBody())))
	require.Equal(t, http.StatusOK, second.Code, "re-trigger joins the in-flight event")
}

func TestRaiseSOSValidationFailure(t *testing.T) {
	router := newTestRouter(memory.NewEventRepository())

	body, _ := json.Marshal(map[string]interface{}{
		"profile": map[string]interface{}{"user_id": "user-1", "name": "  "},
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sos", bytes.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "name")
}

func TestRaiseSOSStorageFailureReturns503(t *testing.T) {
	events := memory.NewEventRepository()
	events.WriteErr = errors.New("disk full")
	router := newTestRouter(events)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sos", bytes.NewReader(triggerBody())))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "STORAGE_FAILURE", resp.Error.Code)
}

func TestGetEventDeniesForeignUser(t *testing.T) {
	events := memory.NewEventRepository(&models.SOSEvent{
		ID:            "evt-foreign",
		UserID:        "someone-else",
		DeliveryState: models.DeliveryStateQueued,
		Profile:       models.ProfileSnapshot{UserID: "someone-else", Name: "Other"},
	})
	router := newTestRouter(events)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sos/evt-foreign", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestResolveEndpointStopsDelivery(t *testing.T) {
	events := memory.NewEventRepository()
	router := newTestRouter(events)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sos", bytes.NewReader(triggerBody())))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	eventID := resp.Data.(map[string]interface{})["event_id"].(string)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/sos/"+eventID+"/resolve", nil))
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := events.GetByID(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStateAcknowledged, stored.DeliveryState)
	assert.True(t, stored.Archived)
}

func TestGetActiveReturns404WhenNone(t *testing.T) {
	router := newTestRouter(memory.NewEventRepository())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sos/active", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
