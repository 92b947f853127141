package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Gin_postgres_redis_supply_tool/app"
	"Gin_postgres_redis_supply_tool/controllers"
	"Gin_postgres_redis_supply_tool/db"
	"Gin_postgres_redis_supply_tool/db/dbtest"
	"Gin_postgres_redis_supply_tool/models"
	"Gin_postgres_redis_supply_tool/ris"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testSecret = "test-secret"

type harness struct {
	t      *testing.T
	router *gin.Engine
	repo   *db.Repo
	admin  *models.User
	clerk  *models.User
}

type envelope struct {
	Success bool              `json:"success"`
	Count   *int              `json:"count"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Kind    string            `json:"kind"`
	Fields  map[string]string `json:"fields"`
}

func newHarness(t *testing.T) *harness {
	gin.SetMode(gin.TestMode)
	repo := db.NewRepo(dbtest.Open(t))
	cfg := app.Config{JWTSecret: testSecret, ActivityLogTTL: 24 * time.Hour}
	s := controllers.NewSrv(repo, cfg, ris.Options{Location: time.UTC})

	r := gin.New()
	Register(r, s, nil)
	return &harness{
		t:      t,
		router: r,
		repo:   repo,
		admin:  dbtest.User(t, repo, "officer", models.RoleAdmin),
		clerk:  dbtest.User(t, repo, "clerk", models.RoleUser),
	}
}

func (h *harness) do(method, path string, as *models.User, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		token, err := app.IssueToken(testSecret, as.ID, time.Hour)
		require.NoError(h.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (h *harness) createItem(name string, qty int) string {
	h.t.Helper()
	w := h.do(http.MethodPost, "/api/items", h.admin, gin.H{"name": name, "quantity": qty, "unit": "ream"})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	var it models.Item
	require.NoError(h.t, json.Unmarshal(decode(h.t, w).Data, &it))
	return it.ID
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/items", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	bad, err := app.IssueToken("other-secret", h.clerk.ID, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bad)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	w = h.do(http.MethodGet, "/api/me", h.clerk, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isAdmin":false`)

	w = h.do(http.MethodPost, "/api/items", h.clerk, gin.H{"name": "Pen", "quantity": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequestLifecycle(t *testing.T) {
	h := newHarness(t)
	itemID := h.createItem("Bond paper", 50)

	w := h.do(http.MethodPost, "/api/requests", h.clerk, gin.H{"item": itemID, "quantity": 20, "purpose": "Quarterly reports"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var req models.Request
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &req))
	require.Len(t, req.Lines, 1)
	assert.Equal(t, models.StatusPending, req.Status)

	// 未审核前不能出 RIS
	w = h.do(http.MethodPost, "/api/ris/generate/"+req.ID, h.clerk, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "InvalidState", decode(t, w).Kind)

	w = h.do(http.MethodPut, "/api/requests/"+req.ID+"/approve", h.clerk, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPut, "/api/requests/"+req.ID+"/approve", h.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &req))
	assert.Equal(t, models.StatusApproved, req.Status)

	w = h.do(http.MethodPut, "/api/requests/"+req.ID+"/approve", h.admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodPost, "/api/ris/generate/"+req.ID, h.clerk, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/vnd.openxmlformats"))
	number := w.Header().Get("X-RIS-Number")
	assert.Regexp(t, `^R\d{4}-\d{4}-001$`, number)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "RIS-"+number+".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(f.GetSheetName(0), "G11")
	require.NoError(t, err)
	assert.Equal(t, "30", v)

	// 已审核的申请不能删除
	w = h.do(http.MethodDelete, "/api/requests/"+req.ID, h.clerk, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)
	itemID := h.createItem("Toner", 3)

	w := h.do(http.MethodPost, "/api/requests", h.clerk, gin.H{"item": itemID, "quantity": 5, "purpose": "Printer"})
	require.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "InsufficientStock", env.Kind)
	assert.Equal(t, "Insufficient stock for Toner. Available: 3", env.Error)

	w = h.do(http.MethodGet, "/api/requests/00000000-0000-0000-0000-000000000000", h.clerk, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", decode(t, w).Kind)

	w = h.do(http.MethodPost, "/api/requests", h.clerk, gin.H{"item": itemID, "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Purpose is required", decode(t, w).Error)

	w = h.do(http.MethodPost, "/api/transactions", h.clerk, gin.H{"item": itemID, "type": "sideways", "quantity": 1})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env = decode(t, w)
	assert.Equal(t, "ValidationError", env.Kind)
	assert.Equal(t, "oneof", env.Fields["type"])

	w = h.do(http.MethodPost, "/api/requests", h.clerk, gin.H{"items": []gin.H{{"quantity": 1}}, "purpose": "Printer"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "required", decode(t, w).Fields["items[0].item"])

	w = h.do(http.MethodPost, "/api/ris/generate-batch", h.clerk, gin.H{"requestIds": []string{"only-one"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransactionsAndActivity(t *testing.T) {
	h := newHarness(t)
	itemID := h.createItem("Folder", 10)

	w := h.do(http.MethodPost, "/api/transactions", h.clerk, gin.H{"item": itemID, "type": "out", "quantity": 4})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// 普通用户只看到自己经手的流水
	w = h.do(http.MethodGet, "/api/transactions", h.clerk, nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)

	w = h.do(http.MethodGet, "/api/transactions?itemId="+itemID, h.admin, nil)
	env = decode(t, w)
	assert.Equal(t, 2, *env.Count)

	w = h.do(http.MethodGet, "/api/transactions?startDate=yesterday", h.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/ledger/verify/"+itemID, h.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)

	w = h.do(http.MethodGet, "/api/activity-logs?action=CREATE_TRANSACTION", h.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []models.ActivityLog
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, h.clerk.ID, logs[0].UserID)
	assert.Equal(t, "transactions", logs[0].ResourceType)

	// clerk 看不到管理员的 CREATE_ITEM 记录
	w = h.do(http.MethodGet, "/api/activity-logs?action=CREATE_ITEM", h.clerk, nil)
	assert.Equal(t, 0, *decode(t, w).Count)

	w = h.do(http.MethodPost, "/api/excel/low-stock-alert", h.clerk, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Low-Stock-Alert-")
}

func TestItemLabelExport(t *testing.T) {
	h := newHarness(t)
	itemID := h.createItem("Stapler", 6)

	for _, path := range []string{"/api/excel/item-label/", "/api/documents/item-label/"} {
		w := h.do(http.MethodPost, path+itemID, h.clerk, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Header().Get("Content-Disposition"), "label-")

		f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		name, _ := f.GetCellValue("Label", "A1")
		f.Close()
		assert.Equal(t, "Stapler", name)
	}

	w := h.do(http.MethodPost, "/api/documents/item-label/00000000-0000-0000-0000-000000000000", h.clerk, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodGet, "/api/activity-logs?action=EXPORT_LABEL", h.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, *decode(t, w).Count)
}

func TestUserAdmin(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodDelete, "/api/users/"+h.admin.ID, h.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPut, "/api/me", h.clerk, gin.H{"designation": "Admin Aide III"})
	require.Equal(t, http.StatusOK, w.Code)
	u, err := h.repo.FindUserByID(context.Background(), h.clerk.ID)
	require.NoError(t, err)
	assert.Equal(t, "Admin Aide III", u.Designation)

	w = h.do(http.MethodGet, "/api/users/not-a-uuid", h.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodDelete, "/api/users/"+h.clerk.ID, h.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	_, err = h.repo.FindUserByID(context.Background(), h.clerk.ID)
	assert.True(t, db.IsNotFound(err))
}
