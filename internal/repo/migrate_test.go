package repo

import (
	"testing"
	"testing/fstest"
)

func TestMigrationFilesSkipsDialectSubtreeAndSortsByName(t *testing.T) {
	fsys := fstest.MapFS{
		"002_keys.sql":          {Data: []byte("CREATE TABLE b (id TEXT);")},
		"001_init.sql":          {Data: []byte("CREATE TABLE a (id TEXT);")},
		"003_empty.sql":         {Data: []byte("")},
		"sqlite/001_init.sql":   {Data: []byte("CREATE TABLE a (id TEXT);")},
		"sqlite/002_nested.sql": {Data: []byte("CREATE TABLE b (id TEXT);")},
	}

	names, err := migrationFiles(fsys)
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}

	want := []string{"001_init.sql", "002_keys.sql"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}
