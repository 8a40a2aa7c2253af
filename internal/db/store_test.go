package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/logger"
)

// testStore creates a store backed by a temp database with migrations
// applied.
func testStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		MaxConns: 2,
		LogLevel: logger.Silent,
	})
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// StoreSuite is a test suite for Store operations.
type StoreSuite struct {
	suite.Suite
	store *Store
}

func (s *StoreSuite) SetupTest() {
	s.store = testStore(s.T())
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

// TestPing verifies the connection is alive after open.
func (s *StoreSuite) TestPing() {
	s.NoError(s.store.Ping())
}

// TestMigrations verifies all tables exist after open.
func (s *StoreSuite) TestMigrations() {
	for _, table := range []string{"sessions", "questions", "exports", "tasks"} {
		s.True(s.store.DB.Migrator().HasTable(table), "table %s should exist", table)
	}
}

// TestMigrationsIdempotent verifies reopening the same database works.
func (s *StoreSuite) TestMigrationsIdempotent() {
	path := filepath.Join(s.T().TempDir(), "reopen.db")

	first, err := NewStore(Config{Path: path, LogLevel: logger.Silent})
	s.Require().NoError(err)
	s.Require().NoError(first.Close())

	second, err := NewStore(Config{Path: path, LogLevel: logger.Silent})
	s.Require().NoError(err)
	s.NoError(second.Close())
}
