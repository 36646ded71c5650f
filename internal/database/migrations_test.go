package database

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/lib/pq"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := pendingMigrations(Migrations(), nil)
	if err != nil {
		t.Fatalf("pendingMigrations() error = %v", err)
	}
	want := []string{"001_create_tenders.sql", "002_create_scrape_logs.sql"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("migrations = %v, want %v", names, want)
	}

	content, err := fs.ReadFile(Migrations(), want[0])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "UNIQUE (source, source_id)") {
		t.Error("tenders migration must enforce the composite key")
	}
}

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"010_later.sql":   {Data: []byte("SELECT 1;")},
		"002_second.sql":  {Data: []byte("SELECT 1;")},
		"001_first.sql":   {Data: []byte("SELECT 1;")},
		"README.md":       {Data: []byte("notes")},
		"archive/old.sql": {Data: []byte("SELECT 1;")},
	}

	names, err := pendingMigrations(fsys, map[string]bool{"001_first.sql": true})
	if err != nil {
		t.Fatalf("pendingMigrations() error = %v", err)
	}
	if strings.Join(names, ",") != "002_second.sql,010_later.sql" {
		t.Errorf("pending = %v", names)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"unique", &pq.Error{Code: "23505"}, true},
		{"wrapped unique", errors.Join(errors.New("insert"), &pq.Error{Code: "23505"}), true},
		{"foreign key", &pq.Error{Code: "23503"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}
