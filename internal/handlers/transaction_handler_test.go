package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"payments-service/internal/middleware"
	"payments-service/internal/models"
	"payments-service/internal/repository"
	"payments-service/internal/services"
)

func setupTransactionRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS payment_transactions (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  reservation_id TEXT,
  transaction_direction TEXT NOT NULL,
  transaction_type TEXT,
  payment_method TEXT,
  payment_status TEXT NOT NULL,
  amount DECIMAL(12,2) NOT NULL,
  refunded_amount DECIMAL(12,2),
  available_refund_amount DECIMAL(12,2),
  is_refundable INTEGER NOT NULL DEFAULT 0,
  parent_transaction_id TEXT,
  payment_intent_id TEXT,
  payment_method_id TEXT,
  stripe_payment_id TEXT,
  metadata TEXT,
  invoice_message TEXT,
  due_date DATETIME,
  last_refund_date DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	repo := repository.NewLedgerRepository(db)
	svc := services.NewTransactionService(repo, nil, nil, nil, log)
	h := NewTransactionHandler(svc, nil)

	r := gin.New()
	r.Use(middleware.TenantMiddleware())
	api := r.Group("/api/v1")
	api.Use(middleware.RequireTenantID())
	api.POST("/transactions", h.CreateTransaction)
	api.GET("/transactions", h.ListTransactions)
	return r
}

func doTenantRequest(r *gin.Engine, method, path, tenant, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenant)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateTransaction_TenantComesFromHeaderNotBody(t *testing.T) {
	r := setupTransactionRouter(t)

	body := `{"tenantId":"tenant-b","transactionDirection":"charge","amount":100.00,"paymentMethod":"card"}`
	w := doTenantRequest(r, http.MethodPost, "/api/v1/transactions", "tenant-a", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.PaymentTransaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "tenant-a", created.TenantID)

	// The row lives under the authenticated tenant; the body's tenant id
	// never sees it.
	var listing struct {
		Count int `json:"count"`
	}
	w = doTenantRequest(r, http.MethodGet, "/api/v1/transactions", "tenant-b", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Equal(t, 0, listing.Count)

	w = doTenantRequest(r, http.MethodGet, "/api/v1/transactions", "tenant-a", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Count)
}

func TestCreateTransaction_MissingTenantHeaderIsUnauthorized(t *testing.T) {
	r := setupTransactionRouter(t)

	body := `{"transactionDirection":"charge","amount":100.00}`
	w := doTenantRequest(r, http.MethodPost, "/api/v1/transactions", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
