//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/warungkita/api/internal/config"
	"github.com/warungkita/api/internal/database"
	"github.com/warungkita/api/internal/router"
	"github.com/warungkita/api/internal/ws"
	"golang.org/x/crypto/bcrypt"
)

// TestIntegrationFlow exercises the two core lifecycles against a real
// PostgreSQL database with all handlers wired through the router: a purchase
// order from creation through delivery into the stock ledger, and a dine-in
// order from creation through payment.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:        "8081",
		DatabaseURL: connStr,
		JWTSecret:   "integration-test-secret",
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// hub.Run() goroutine leaks on test exit; the hub has no shutdown
	// mechanism. Acceptable for tests.
	go hub.Run()

	r := router.New(cfg, queries, pool, hub)
	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Bootstrap admin (direct DB insert) and login ---
	adminID := createAdminUser(t, ctx, pool)
	token := integrationLogin(t, server, "admin@test.com", "password123")

	// --- 2. Create supplier and ingredient through the API ---
	supplierResp := postJSON(t, server, "/suppliers", map[string]interface{}{
		"name":           "CV Sumber Segar",
		"contact_person": "Budi",
		"rating":         "4.5",
	}, token, http.StatusCreated)
	supplierID := uuid.MustParse(supplierResp["id"].(string))

	ingredientResp := postJSON(t, server, "/ingredients", map[string]interface{}{
		"name":            "Beras",
		"unit":            "kg",
		"min_stock_level": "10",
		"cost_per_unit":   "12000",
	}, token, http.StatusCreated)
	ingredientID := uuid.MustParse(ingredientResp["id"].(string))
	if ingredientResp["current_stock"].(string) != "0.00" {
		t.Fatalf("new ingredient stock: got %v, want 0.00", ingredientResp["current_stock"])
	}

	// --- 3. Create a purchase order (admin requester auto-approves) ---
	poResp := postJSON(t, server, "/purchase-orders", map[string]interface{}{
		"supplier_id": supplierID.String(),
		"items": []map[string]interface{}{
			{"ingredient_id": ingredientID.String(), "quantity": "25", "unit_price": "12000"},
		},
	}, token, http.StatusCreated)
	poID := uuid.MustParse(poResp["id"].(string))
	if poResp["status"].(string) != "APPROVED" {
		t.Fatalf("po status: got %v, want APPROVED (admin auto-approval)", poResp["status"])
	}
	if poResp["total_amount"].(string) != "300000.00" {
		t.Fatalf("po total: got %v, want 300000.00", poResp["total_amount"])
	}

	// --- 4. Deliver: stock counter and ledger move together ---
	delivered := patchJSON(t, server, "/purchase-orders/"+poID.String()+"/status",
		map[string]interface{}{"status": "DELIVERED"}, token, http.StatusOK)
	if delivered["actual_delivery_date"] == nil {
		t.Fatalf("delivered po missing actual_delivery_date")
	}

	ingAfter := getJSON(t, server, "/ingredients/"+ingredientID.String(), token)
	if ingAfter["current_stock"].(string) != "25.00" {
		t.Fatalf("stock after delivery: got %v, want 25.00", ingAfter["current_stock"])
	}

	txList := getJSON(t, server, "/inventory/transactions?ingredient_id="+ingredientID.String(), token)
	transactions := txList["transactions"].([]interface{})
	if len(transactions) != 1 {
		t.Fatalf("ledger rows after delivery: got %d, want exactly 1", len(transactions))
	}
	ledgerRow := transactions[0].(map[string]interface{})
	if ledgerRow["type"].(string) != "PURCHASE" {
		t.Fatalf("ledger row type: got %v, want PURCHASE", ledgerRow["type"])
	}
	if ledgerRow["quantity"].(string) != "25.00" {
		t.Fatalf("ledger row quantity: got %v, want 25.00", ledgerRow["quantity"])
	}
	if ledgerRow["reference_id"].(string) != poID.String() {
		t.Fatalf("ledger row reference: got %v, want %s", ledgerRow["reference_id"], poID)
	}

	// --- 5. Complete the purchase order ---
	completed := patchJSON(t, server, "/purchase-orders/"+poID.String()+"/status",
		map[string]interface{}{"status": "COMPLETED"}, token, http.StatusOK)
	if completed["status"].(string) != "COMPLETED" {
		t.Fatalf("po status: got %v, want COMPLETED", completed["status"])
	}

	// --- 6. A manual usage adjustment appends to the same ledger ---
	adjustment := postJSON(t, server, "/inventory/adjustments", map[string]interface{}{
		"ingredient_id": ingredientID.String(),
		"type":          "USAGE",
		"quantity":      "5",
	}, token, http.StatusCreated)
	adjIngredient := adjustment["ingredient"].(map[string]interface{})
	if adjIngredient["current_stock"].(string) != "20.00" {
		t.Fatalf("stock after usage: got %v, want 20.00", adjIngredient["current_stock"])
	}

	// --- 7. Menu item, order, kitchen workflow ---
	menuResp := postJSON(t, server, "/menu-items", map[string]interface{}{
		"name":     "Nasi Goreng Spesial",
		"category": "MAIN",
		"price":    "35000",
	}, token, http.StatusCreated)
	menuItemID := uuid.MustParse(menuResp["id"].(string))

	orderResp := postJSON(t, server, "/orders", map[string]interface{}{
		"table_number": "12",
		"items": []map[string]interface{}{
			{"menu_item_id": menuItemID.String(), "quantity": 2},
		},
	}, token, http.StatusCreated)
	orderID := uuid.MustParse(orderResp["id"].(string))
	if orderResp["total_amount"].(string) != "70000.00" {
		t.Fatalf("order total: got %v, want 70000.00", orderResp["total_amount"])
	}
	if orderResp["order_number"].(string) != "ORD-001" {
		t.Fatalf("order number: got %v, want ORD-001", orderResp["order_number"])
	}

	// Jumping straight to COMPLETED is not a legal edge.
	patchJSON(t, server, "/orders/"+orderID.String()+"/status",
		map[string]interface{}{"status": "COMPLETED"}, token, http.StatusBadRequest)

	for _, status := range []string{"PREPARING", "READY", "SERVED", "PAYMENT_REQUESTED"} {
		patchJSON(t, server, "/orders/"+orderID.String()+"/status",
			map[string]interface{}{"status": status}, token, http.StatusOK)
	}

	// --- 8. Payment settles the order and copies the method onto it ---
	paymentResp := postJSON(t, server, "/payments", map[string]interface{}{
		"order_id": orderID.String(),
		"amount":   "70000",
		"method":   "CASH",
		"status":   "COMPLETED",
	}, token, http.StatusCreated)
	payment := paymentResp["payment"].(map[string]interface{})
	if payment["status"].(string) != "COMPLETED" {
		t.Fatalf("payment status: got %v, want COMPLETED", payment["status"])
	}
	if payment["amount"].(string) != "70000.00" {
		t.Fatalf("payment amount: got %v, want order total 70000.00", payment["amount"])
	}

	paidOrder := getJSON(t, server, "/orders/"+orderID.String(), token)
	if paidOrder["status"].(string) != "COMPLETED" {
		t.Fatalf("order status after payment: got %v, want COMPLETED", paidOrder["status"])
	}
	if paidOrder["payment_method"].(string) != "CASH" {
		t.Fatalf("order payment_method: got %v, want CASH", paidOrder["payment_method"])
	}

	// Paying again must conflict.
	postJSON(t, server, "/payments", map[string]interface{}{
		"order_id": orderID.String(),
		"amount":   "70000",
		"method":   "CASH",
		"status":   "COMPLETED",
	}, token, http.StatusConflict)

	t.Logf("Integration test passed: container=%s, admin=%s, supplier=%s, po=%s, order=%s",
		pgContainer.GetContainerID(), adminID, supplierID, poID, orderID)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("warung_test"),
		tcpostgres.WithUsername("warung"),
		tcpostgres.WithPassword("warung"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Path relative to this package directory; go test sets cwd there.
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../db/migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createAdminUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, full_name, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		"admin@test.com", string(hashedPassword), "Test Admin", "ADMIN",
	).Scan(&id)
	if err != nil {
		t.Fatalf("create admin user: %v", err)
	}
	return id
}

func integrationLogin(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	resp := postJSON(t, server, "/auth/login", map[string]interface{}{
		"email":    email,
		"password": password,
	}, "", http.StatusOK)
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

// --- HTTP helpers ---

func postJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string, wantStatus int) map[string]interface{} {
	t.Helper()
	return doJSON(t, server, "POST", path, body, token, wantStatus)
}

func patchJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string, wantStatus int) map[string]interface{} {
	t.Helper()
	return doJSON(t, server, "PATCH", path, body, token, wantStatus)
}

func getJSON(t *testing.T, server *httptest.Server, path string, token string) map[string]interface{} {
	t.Helper()
	return doJSON(t, server, "GET", path, nil, token, http.StatusOK)
}

func doJSON(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string, wantStatus int) map[string]interface{} {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && wantStatus != http.StatusNoContent {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}

	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d, body: %v", method, path, resp.StatusCode, wantStatus, result)
	}
	return result
}
