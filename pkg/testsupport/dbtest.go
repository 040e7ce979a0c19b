package testsupport

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-blocksync/pkg/storage"
	"github.com/uptrace/bun"
)

var sqliteSeq atomic.Int64

// NewSQLiteBlockDB opens a private in-memory sqlite database with the block
// tables created. The database is closed when the test ends.
func NewSQLiteBlockDB(tb testing.TB) *bun.DB {
	tb.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:blocksync_test_%d?mode=memory&cache=shared", sqliteSeq.Add(1))
	db, err := storage.Open(ctx, dsn)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	if err := storage.EnsureSchema(ctx, db); err != nil {
		tb.Fatalf("ensure schema: %v", err)
	}
	return db
}
