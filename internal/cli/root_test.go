package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	cfgDB := filepath.Join(dir, "from-config.db")
	if err := os.WriteFile(cfgFile, []byte("database:\n  path: "+cfgDB+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	restore := func(cfg, db string) func() {
		configPath, dbPath = cfg, db
		return func() { configPath, dbPath = "", "" }
	}

	t.Run("ConfigFileSetsDatabasePath", func(t *testing.T) {
		defer restore(cfgFile, "")()

		store, err := openStore()
		if err != nil {
			t.Fatalf("openStore failed: %v", err)
		}
		store.Close()

		if _, err := os.Stat(cfgDB); err != nil {
			t.Errorf("Database should have been created at the config path: %v", err)
		}
	})

	t.Run("DbFlagOverridesConfig", func(t *testing.T) {
		flagDB := filepath.Join(dir, "from-flag.db")
		defer restore(cfgFile, flagDB)()

		store, err := openStore()
		if err != nil {
			t.Fatalf("openStore failed: %v", err)
		}
		store.Close()

		if _, err := os.Stat(flagDB); err != nil {
			t.Errorf("Database should have been created at the flag path: %v", err)
		}
	})
}
