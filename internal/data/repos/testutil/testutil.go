package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/talkco-backend/internal/data/db"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
)

var dbSeq atomic.Int64

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("test")
	if err != nil {
		tb.Fatalf("failed to init logger: %v", err)
	}
	tb.Cleanup(log.Sync)
	return log
}

// DB returns a freshly migrated in-memory SQLite database private to the test.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	path := fmt.Sprintf("file:talkco_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	svc, err := db.Open(logger.Nop(), db.Config{Driver: db.DriverSQLite, SQLitePath: path})
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	tb.Cleanup(func() { _ = svc.Close() })
	if err := db.AutoMigrateAll(svc.DB()); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	return svc.DB()
}

func Tx(tb testing.TB, gdb *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := gdb.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

func Ctx(tb testing.TB) dbctx.Context {
	tb.Helper()
	return dbctx.Context{Ctx: tb.Context()}
}
