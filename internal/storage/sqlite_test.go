package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Helper function to create a temporary test database
func setupTestDB(t *testing.T) *Client {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_fretflow.sqlite3")

	client, err := OpenPath(dbPath)
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

func TestOpenCreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "fretflow.sqlite3")

	client, err := OpenPath(dbPath)
	if err != nil {
		t.Fatalf("Failed to open DB at nested path: %v", err)
	}
	defer client.Close()

	if client.DB == nil {
		t.Fatal("Expected non-nil GORM handle")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

func TestOpenHonorsEnvPath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env_fretflow.sqlite3")
	t.Setenv("FRETFLOW_DB_PATH", dbPath)

	client, err := Open()
	if err != nil {
		t.Fatalf("Failed to open DB via env path: %v", err)
	}
	defer client.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at env path %s", dbPath)
	}
}

func TestCreateSession(t *testing.T) {
	client := setupTestDB(t)

	id, err := client.CreateSession("natural", []string{"E", "A"})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if id == "" {
		t.Fatal("Expected non-empty session id")
	}

	var s Session
	if err := client.DB.First(&s, "id = ?", id).Error; err != nil {
		t.Fatalf("Failed to retrieve session: %v", err)
	}
	if s.Difficulty != "natural" {
		t.Errorf("Difficulty = %q, want natural", s.Difficulty)
	}
	if s.Strings != "E,A" {
		t.Errorf("Strings = %q, want E,A", s.Strings)
	}
}

func TestRecordAttemptAndStats(t *testing.T) {
	client := setupTestDB(t)

	id, err := client.CreateSession("all", []string{"E"})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	elapsed := []time.Duration{2 * time.Second, 4 * time.Second}
	for i, d := range elapsed {
		if err := client.RecordAttempt(id, "A", "E", 5, d); err != nil {
			t.Fatalf("Failed to record attempt %d: %v", i, err)
		}
	}

	count, avg, err := client.SessionStats(id)
	if err != nil {
		t.Fatalf("Failed to query stats: %v", err)
	}
	if count != 2 {
		t.Errorf("Attempt count = %d, want 2", count)
	}
	if avg != 3*time.Second {
		t.Errorf("Average elapsed = %v, want 3s", avg)
	}
}

func TestSessionStatsEmpty(t *testing.T) {
	client := setupTestDB(t)

	id, err := client.CreateSession("natural", []string{"E"})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	count, avg, err := client.SessionStats(id)
	if err != nil {
		t.Fatalf("Failed to query stats for empty session: %v", err)
	}
	if count != 0 || avg != 0 {
		t.Errorf("Empty session stats = (%d, %v), want (0, 0)", count, avg)
	}
}

func TestRecentSessions(t *testing.T) {
	client := setupTestDB(t)

	first, err := client.CreateSession("natural", []string{"E"})
	if err != nil {
		t.Fatalf("Failed to create first session: %v", err)
	}
	if err := client.RecordAttempt(first, "C", "A", 3, time.Second); err != nil {
		t.Fatalf("Failed to record attempt: %v", err)
	}
	if _, err := client.CreateSession("all", []string{"E", "A", "D"}); err != nil {
		t.Fatalf("Failed to create second session: %v", err)
	}

	summaries, err := client.RecentSessions(10)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Got %d sessions, want 2", len(summaries))
	}
	for _, s := range summaries {
		if s.ID == first && s.Attempts != 1 {
			t.Errorf("First session attempts = %d, want 1", s.Attempts)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	client := setupTestDB(t)

	id, err := client.CreateSession("natural", []string{"E"})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if err := client.RecordAttempt(id, "G", "E", 3, time.Second); err != nil {
		t.Fatalf("Failed to record attempt: %v", err)
	}

	if err := client.DeleteSession(id); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}

	var count int64
	client.DB.Model(&Attempt{}).Where("session_id = ?", id).Count(&count)
	if count != 0 {
		t.Errorf("Attempts remaining after delete: %d", count)
	}
}

func TestNilClientGuards(t *testing.T) {
	var c *Client
	if _, err := c.CreateSession("natural", nil); err == nil {
		t.Error("CreateSession on nil client did not fail")
	}
	if err := c.RecordAttempt("x", "A", "E", 0, 0); err == nil {
		t.Error("RecordAttempt on nil client did not fail")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil client: %v", err)
	}
}
