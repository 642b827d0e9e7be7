//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/money-manager/apiserver/config"
	"github.com/money-manager/apiserver/internal/server"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestTransactionLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	email := fmt.Sprintf("user_%d@example.com", time.Now().UnixNano())
	password := "testpass123!"

	if err := registerUser(t, baseURL, "Test User", email, password); err != nil {
		t.Fatalf("register user: %v", err)
	}

	token, err := loginUser(t, baseURL, email, password)
	if err != nil {
		t.Fatalf("login user: %v", err)
	}

	salary, err := createTransaction(t, baseURL, token, "Salary", 2500, "INCOME")
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	if salary.ID == "" {
		t.Fatalf("expected transaction id to be set")
	}

	// Keep the created timestamps (epoch ms) distinct so the ordering
	// assertion below is deterministic.
	time.Sleep(5 * time.Millisecond)

	rent, err := createTransaction(t, baseURL, token, "Rent", 650.25, "EXPENSES")
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}

	list, err := listTransactions(t, baseURL, token)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if list.Count != 2 {
		t.Fatalf("expected 2 transactions, got %d", list.Count)
	}
	if list.Summary.Balance != list.Summary.Income-list.Summary.Expenses {
		t.Fatalf("summary balance mismatch: %+v", list.Summary)
	}
	if list.Data[0].ID != rent.ID {
		t.Fatalf("expected most recent transaction first, got %q", list.Data[0].Title)
	}

	updated, err := updateTransaction(t, baseURL, token, rent.ID, "Groceries", 42.50, "EXPENSES")
	if err != nil {
		t.Fatalf("update transaction: %v", err)
	}
	if updated.Title != "Groceries" || updated.Amount != 42.50 {
		t.Fatalf("unexpected updated transaction: %+v", updated)
	}

	fetched, err := getTransaction(t, baseURL, token, rent.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if fetched.Title != "Groceries" {
		t.Fatalf("update not persisted: %+v", fetched)
	}

	if err := deleteTransaction(t, baseURL, token, salary.ID); err != nil {
		t.Fatalf("delete transaction: %v", err)
	}
	if err := expectTransactionNotFound(t, baseURL, token, salary.ID); err != nil {
		t.Fatalf("expected deleted transaction to be missing: %v", err)
	}

	count, err := deleteAllTransactions(t, baseURL, token)
	if err != nil {
		t.Fatalf("delete all transactions: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 removed transaction, got %d", count)
	}

	count, err = deleteAllTransactions(t, baseURL, token)
	if err != nil {
		t.Fatalf("second delete all: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 removed transactions, got %d", count)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()
	password := "testpass123!"

	aliceEmail := fmt.Sprintf("alice_%d@example.com", suffix)
	bobEmail := fmt.Sprintf("bob_%d@example.com", suffix)

	if err := registerUser(t, baseURL, "Alice", aliceEmail, password); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if err := registerUser(t, baseURL, "Bob", bobEmail, password); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	aliceToken, err := loginUser(t, baseURL, aliceEmail, password)
	if err != nil {
		t.Fatalf("login alice: %v", err)
	}
	bobToken, err := loginUser(t, baseURL, bobEmail, password)
	if err != nil {
		t.Fatalf("login bob: %v", err)
	}

	tx, err := createTransaction(t, baseURL, aliceToken, "Salary", 2500, "INCOME")
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	if err := expectTransactionNotFound(t, baseURL, bobToken, tx.ID); err != nil {
		t.Fatalf("expected foreign transaction to be hidden: %v", err)
	}

	if _, err := getTransaction(t, baseURL, aliceToken, tx.ID); err != nil {
		t.Fatalf("owner access broken: %v", err)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	email := fmt.Sprintf("dup_%d@example.com", time.Now().UnixNano())

	if err := registerUser(t, baseURL, "First", email, "testpass123!"); err != nil {
		t.Fatalf("first register: %v", err)
	}

	status, err := registerStatus(t, baseURL, "Second", email, "testpass123!")
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if status != http.StatusConflict {
		t.Fatalf("expected status 409 on duplicate email, got %d", status)
	}
}

type transactionPayload struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Amount  float64 `json:"amount"`
	Type    string  `json:"type"`
	Created int64   `json:"created"`
}

type transactionEnvelope struct {
	Success bool               `json:"success"`
	Data    transactionPayload `json:"data"`
}

type listEnvelope struct {
	Success bool                 `json:"success"`
	Count   int                  `json:"count"`
	Data    []transactionPayload `json:"data"`
	Summary struct {
		Income   float64 `json:"income"`
		Expenses float64 `json:"expenses"`
		Balance  float64 `json:"balance"`
	} `json:"summary"`
}

type clearedEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

type loginEnvelope struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

func registerUser(t *testing.T, baseURL, name, email, password string) error {
	t.Helper()

	status, err := registerStatus(t, baseURL, name, email, password)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("register status %d", status)
	}
	return nil
}

func registerStatus(t *testing.T, baseURL, name, email, password string) (int, error) {
	t.Helper()

	payload := map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}
	resp, err := postJSON(baseURL+"/auth/register", "", payload)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func loginUser(t *testing.T, baseURL, email, password string) (string, error) {
	t.Helper()

	payload := map[string]string{"email": email, "password": password}
	resp, err := postJSON(baseURL+"/auth/login", "", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed loginEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in login response")
	}
	return parsed.Token, nil
}

func createTransaction(t *testing.T, baseURL, token, title string, amount float64, txType string) (transactionPayload, error) {
	t.Helper()

	payload := map[string]any{"title": title, "amount": amount, "type": txType}
	resp, err := postJSON(baseURL+"/transactions", token, payload)
	if err != nil {
		return transactionPayload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return transactionPayload{}, fmt.Errorf("create status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed transactionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return transactionPayload{}, err
	}
	return parsed.Data, nil
}

func listTransactions(t *testing.T, baseURL, token string) (listEnvelope, error) {
	t.Helper()

	resp, err := doAuthed(http.MethodGet, baseURL+"/transactions", token, nil)
	if err != nil {
		return listEnvelope{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return listEnvelope{}, fmt.Errorf("list status %d", resp.StatusCode)
	}

	var parsed listEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return listEnvelope{}, err
	}
	return parsed, nil
}

func getTransaction(t *testing.T, baseURL, token, id string) (transactionPayload, error) {
	t.Helper()

	resp, err := doAuthed(http.MethodGet, baseURL+"/transactions/"+id, token, nil)
	if err != nil {
		return transactionPayload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return transactionPayload{}, fmt.Errorf("get status %d", resp.StatusCode)
	}

	var parsed transactionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return transactionPayload{}, err
	}
	return parsed.Data, nil
}

func updateTransaction(t *testing.T, baseURL, token, id, title string, amount float64, txType string) (transactionPayload, error) {
	t.Helper()

	payload := map[string]any{"title": title, "amount": amount, "type": txType}
	body, err := json.Marshal(payload)
	if err != nil {
		return transactionPayload{}, err
	}

	resp, err := doAuthed(http.MethodPut, baseURL+"/transactions/"+id, token, bytes.NewReader(body))
	if err != nil {
		return transactionPayload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return transactionPayload{}, fmt.Errorf("update status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed transactionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return transactionPayload{}, err
	}
	return parsed.Data, nil
}

func deleteTransaction(t *testing.T, baseURL, token, id string) error {
	t.Helper()

	resp, err := doAuthed(http.MethodDelete, baseURL+"/transactions/"+id, token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete status %d", resp.StatusCode)
	}
	return nil
}

func deleteAllTransactions(t *testing.T, baseURL, token string) (int64, error) {
	t.Helper()

	resp, err := doAuthed(http.MethodDelete, baseURL+"/transactions", token, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("delete all status %d", resp.StatusCode)
	}

	var parsed clearedEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	return parsed.Count, nil
}

func expectTransactionNotFound(t *testing.T, baseURL, token, id string) error {
	t.Helper()

	resp, err := doAuthed(http.MethodGet, baseURL+"/transactions/"+id, token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("expected status 404, got %d", resp.StatusCode)
	}
	return nil
}

func postJSON(url, token string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return doAuthed(http.MethodPost, url, token, bytes.NewReader(body))
}

func doAuthed(method, url, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultClient.Do(req)
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "moneymanager")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "moneymanager_db")
	_ = os.Setenv("DB_USE_SSL", "false")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
