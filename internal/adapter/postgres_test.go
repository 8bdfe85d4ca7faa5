package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected string
	}{
		{
			name: "basic connection",
			config: Config{
				Host:     "localhost",
				Port:     5432,
				Database: "empdep",
				Username: "epi",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=empdep sslmode=disable user=epi password=pass",
		},
		{
			name: "with custom sslmode",
			config: Config{
				Host:     "warehouse.example.org",
				Port:     5432,
				Database: "surveys",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=warehouse.example.org port=5432 dbname=surveys sslmode=require user=admin",
		},
		{
			name: "defaults",
			config: Config{
				Database: "empdep",
			},
			expected: "host=localhost port=5432 dbname=empdep sslmode=disable",
		},
		{
			name: "custom port",
			config: Config{
				Host:     "db.example.org",
				Port:     5433,
				Database: "analytics",
				Username: "analyst",
			},
			expected: "host=db.example.org port=5433 dbname=analytics sslmode=disable user=analyst",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := buildPostgresDSN(tt.config)
			assert.Equal(t, tt.expected, dsn)
		})
	}
}

func TestPostgresAdapter_DialectName(t *testing.T) {
	adapter := NewPostgresAdapter(nil)
	assert.Equal(t, "postgres", adapter.DialectName())
}

func TestPostgresAdapter_NotConnected(t *testing.T) {
	tests := []struct {
		name      string
		operation func(ctx context.Context, adapter *PostgresAdapter) error
	}{
		{
			name: "exec without connect",
			operation: func(ctx context.Context, adapter *PostgresAdapter) error {
				return adapter.Exec(ctx, "SELECT 1")
			},
		},
		{
			name: "query without connect",
			operation: func(ctx context.Context, adapter *PostgresAdapter) error {
				_, err := adapter.Query(ctx, "SELECT 1")
				return err
			},
		},
		{
			name: "get metadata without connect",
			operation: func(ctx context.Context, adapter *PostgresAdapter) error {
				_, err := adapter.GetTableMetadata(ctx, "analytic")
				return err
			},
		},
		{
			name: "load csv without connect",
			operation: func(ctx context.Context, adapter *PostgresAdapter) error {
				return adapter.LoadCSV(ctx, "analytic", "/tmp/analytic.csv")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			adapter := NewPostgresAdapter(nil)

			err := tt.operation(ctx, adapter)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not established")
		})
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"participant_id", "participant_id"},
		{"phq 2023", "phq_2023"},
		{"work-disc", "work_disc"},
		{"user", `"user"`},
		{"order", `"order"`},
		{"group", `"group"`},
		{"table", `"table"`},
		{"select", `"select"`},
		{"from", `"from"`},
		{"where", `"where"`},
		{"index", `"index"`},
		{"UPPERCASE", "UPPERCASE"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeIdentifier(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestIsReservedWord(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"lowercase reserved", "user", true},
		{"uppercase reserved", "USER", true},
		{"mixed case reserved", "User", true},
		{"not reserved", "participant", false},
		{"partial match", "users", false},
		{"order", "order", true},
		{"group", "group", true},
		{"table", "table", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isReservedWord(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNewPostgresAdapter(t *testing.T) {
	adapter := NewPostgresAdapter(nil)
	assert.NotNil(t, adapter)
	assert.Nil(t, adapter.DB)
	assert.False(t, adapter.IsConnected())
}

func TestPostgresAdapter_Close(t *testing.T) {
	adapter := NewPostgresAdapter(nil)
	assert.NoError(t, adapter.Close())
}

// TestPostgresAdapter_Registry verifies the adapter is properly registered.
func TestPostgresAdapter_Registry(t *testing.T) {
	assert.True(t, IsRegistered("postgres"), "postgres adapter should be registered")

	factory, ok := Get("postgres")
	require.True(t, ok, "should be able to get postgres factory")

	adapter := factory(nil)
	require.NotNil(t, adapter)

	pg, ok := adapter.(*PostgresAdapter)
	assert.True(t, ok, "factory should return *PostgresAdapter")
	assert.NotNil(t, pg)
	assert.Equal(t, "postgres", pg.DialectName())
}

func TestPostgresAdapter_LoadCSVBatchesInserts(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	adapter := NewPostgresAdapter(nil)
	adapter.DB = db

	csvPath := filepath.Join(t.TempDir(), "analytic.csv")
	csvContent := "participant_id,phq_2023,transition\n" +
		"p-001,5,0\n" +
		"p-002,,1\n" +
		"p-003,12,3\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(csvContent), 0600))

	mock.ExpectExec("DROP TABLE IF EXISTS analytic").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE analytic (participant_id TEXT, phq_2023 TEXT, transition TEXT)").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO analytic (participant_id, phq_2023, transition) VALUES ($1, $2, $3), ($4, $5, $6), ($7, $8, $9)").
		WithArgs("p-001", "5", "0", "p-002", nil, "1", "p-003", "12", "3").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, adapter.LoadCSV(context.Background(), "analytic", csvPath))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdapter_LoadCSVRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	adapter := NewPostgresAdapter(nil)
	adapter.DB = db

	csvPath := filepath.Join(t.TempDir(), "analytic.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("participant_id\np-001\n"), 0600))

	mock.ExpectExec("DROP TABLE IF EXISTS analytic").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE analytic (participant_id TEXT)").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO analytic (participant_id) VALUES ($1)").
		WithArgs("p-001").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = adapter.LoadCSV(context.Background(), "analytic", csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert batch")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresAdapter_InterfaceCompliance verifies the adapter implements the interface.
func TestPostgresAdapter_InterfaceCompliance(_ *testing.T) {
	var _ Adapter = (*PostgresAdapter)(nil)
	var _ Adapter = NewPostgresAdapter(nil)
}
