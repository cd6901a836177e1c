package app

import (
	"bytes"
	"database/sql"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/maxrawlins/transaction-summary-api/config"
	"github.com/maxrawlins/transaction-summary-api/internal/storage"
)

// TestInitPostgres_InvalidHost expects ping failure.
func TestInitPostgres_InvalidHost(t *testing.T) {
	cfg := config.Config{Postgres: config.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     54329, // unlikely mapped
		User:     "x",
		Password: "y",
		DBName:   "z",
		SSLMode:  "disable",
	}}
	db, err := InitPostgres(cfg)
	if err == nil {
		_ = db.Close()
		t.Fatalf("expected error connecting to invalid DB")
	}
}

func TestOpenStore_Drivers(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.Config
		wantErr bool
		check   func(t *testing.T, s storage.TransactionStore)
	}{
		{
			name: "memory",
			cfg:  config.Config{Store: config.StoreConfig{Driver: config.DriverMemory}},
			check: func(t *testing.T, s storage.TransactionStore) {
				if _, ok := s.(*storage.MemoryStore); !ok {
					t.Fatalf("want *storage.MemoryStore, got %T", s)
				}
			},
		},
		{
			name: "sqlite",
			cfg: config.Config{
				Store:  config.StoreConfig{Driver: config.DriverSQLite},
				SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "tx.db"), InsertChunk: 10},
			},
			check: func(t *testing.T, s storage.TransactionStore) {
				if _, ok := s.(*storage.SQLiteStore); !ok {
					t.Fatalf("want *storage.SQLiteStore, got %T", s)
				}
			},
		},
		{
			name:    "unknown",
			cfg:     config.Config{Store: config.StoreConfig{Driver: "mongo"}},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := OpenStore(tc.cfg)
			if tc.wantErr {
				if err == nil {
					_ = s.Close()
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenStore: %v", err)
			}
			defer s.Close()
			tc.check(t, s)
		})
	}
}

func TestOpenStore_PostgresMigrate(t *testing.T) {
	cases := []struct {
		name       string
		migrate    bool
		migrateErr error
		wantErr    bool
		wantCalls  int
	}{
		{name: "migrates when enabled", migrate: true, wantCalls: 1},
		{name: "skips when disabled", migrate: false, wantCalls: 0},
		{name: "migration failure", migrate: true, migrateErr: errors.New("bad sql"), wantErr: true, wantCalls: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock new: %v", err)
			}
			mock.ExpectClose()

			oldOpen, oldMigrate := postgresOpener, migrator
			calls := 0
			postgresOpener = func(config.Config) (*sql.DB, error) { return db, nil }
			migrator = func(*sql.DB) error { calls++; return tc.migrateErr }
			t.Cleanup(func() { postgresOpener, migrator = oldOpen, oldMigrate })

			cfg := config.Config{Store: config.StoreConfig{Driver: config.DriverPostgres}, Postgres: config.PostgresConfig{Migrate: tc.migrate}}
			s, err := OpenStore(cfg)
			if calls != tc.wantCalls {
				t.Fatalf("migrator calls=%d want %d", calls, tc.wantCalls)
			}
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
			} else {
				if err != nil {
					t.Fatalf("OpenStore: %v", err)
				}
				if _, ok := s.(*storage.PostgresStore); !ok {
					t.Fatalf("want *storage.PostgresStore, got %T", s)
				}
				_ = s.Close()
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

// TestInitializeApp_DBFailure ensures InitializeApp returns error when DB cannot connect.
func TestInitializeApp_DBFailure(t *testing.T) {
	old := postgresOpener
	postgresOpener = func(config.Config) (*sql.DB, error) { return nil, errors.New("connection refused") }
	t.Cleanup(func() { postgresOpener = old })

	r, cleanup, err := InitializeApp(config.Config{Store: config.StoreConfig{Driver: config.DriverPostgres}})
	if err == nil || r != nil || cleanup != nil {
		if cleanup != nil {
			cleanup()
		}
		t.Fatalf("expected error from InitializeApp with invalid DB config")
	}
}

func TestInitializeApp_PostgresHealth(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	mock.ExpectPing()
	mock.ExpectClose()

	old := postgresOpener
	postgresOpener = func(cfg config.Config) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() { postgresOpener = old })

	router, cleanup, err := InitializeApp(config.Config{Store: config.StoreConfig{Driver: config.DriverPostgres}})
	if err != nil || router == nil || cleanup == nil {
		t.Fatalf("InitializeApp failed: err set or nil components")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", w.Code)
	}

	cleanup()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInitializeApp_MemoryHappyPath(t *testing.T) {
	cfg := config.Config{
		Store:  config.StoreConfig{Driver: config.DriverMemory},
		Upload: config.UploadConfig{MaxBytes: 1 << 20},
	}
	router, cleanup, err := InitializeApp(cfg)
	if err != nil {
		t.Fatalf("InitializeApp: %v", err)
	}
	defer cleanup()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "tx.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = io.WriteString(fw, "transaction_id,user_id,product_id,timestamp,transaction_amount\n1,3,9,2024-01-01,10\n2,3,9,2024-01-02,20\n")
	_ = mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upload status=%d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/summary/3", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("summary status=%d body=%s", w.Code, w.Body.String())
	}
	if want := `"mean":15`; !bytes.Contains(w.Body.Bytes(), []byte(want)) {
		t.Fatalf("body %s missing %s", w.Body.String(), want)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", w.Code)
	}
}
