package migrations

import (
	"io/fs"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	want := []string{"001_core.sql", "002_maintenance.sql", "003_checklists.sql", "004_tenant_sequences.sql"}
	if len(files) != len(want) {
		t.Fatalf("embedded %v, want %v", files, want)
	}
	for i, f := range files {
		if f != want[i] {
			t.Errorf("file %d = %s, want %s", i, f, want[i])
		}
	}
}
