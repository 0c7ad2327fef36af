package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/meetscribe/meetscribe/server/internal/store"
	"github.com/meetscribe/meetscribe/server/internal/store/storetest"
)

func TestSQLiteStoreCompliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		db, err := Open(filepath.Join(t.TempDir(), "meetscribe.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return NewWithDB(db)
	})
}
