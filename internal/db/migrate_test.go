package db

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/itsyousal/TDHEMS-sub002/migrations"
)

func TestExtractVersion(t *testing.T) {
	v, err := extractVersion("001_init.sql")
	if err != nil || v != "001" {
		t.Fatalf("want 001, got %q (%v)", v, err)
	}
	for _, bad := range []string{"init.sql", "_init.sql"} {
		if _, err := extractVersion(bad); err == nil {
			t.Errorf("%s: expected an error", bad)
		}
	}
}

func TestDiscoverMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_lots.sql":  {Data: []byte("CREATE TABLE lots ();")},
		"001_init.sql":  {Data: []byte("CREATE TABLE skus ();")},
		"README.md":     {Data: []byte("ignored")},
		"archive/x.sql": {Data: []byte("ignored")},
	}
	got, err := DiscoverMigrations(fsys)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 migrations, got %d", len(got))
	}
	if got[0].Version != "001" || got[1].Version != "002" {
		t.Errorf("migrations out of order: %s, %s", got[0].Filename, got[1].Filename)
	}
	if len(got[0].Checksum) != 64 || got[0].Checksum == got[1].Checksum {
		t.Errorf("unexpected checksums %q %q", got[0].Checksum, got[1].Checksum)
	}
}

func TestDiscoverMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_init.sql":  {Data: []byte("SELECT 1;")},
		"001_again.sql": {Data: []byte("SELECT 2;")},
	}
	if _, err := DiscoverMigrations(fsys); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("want duplicate version error, got %v", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := DiscoverMigrations(migrations.Files)
	if err != nil {
		t.Fatalf("discover embedded: %v", err)
	}
	if len(got) == 0 || got[0].Version != "001" {
		t.Fatalf("embedded migrations should start at 001, got %+v", got)
	}
	if !strings.Contains(got[0].SQL, "inventory_records") {
		t.Error("001 should create inventory_records")
	}
}
