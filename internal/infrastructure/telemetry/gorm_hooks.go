package telemetry

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// gormHook pairs a gorm operation name with its callback registration
// function. Method values keep gorm's unexported processor types out of the
// signatures.
type gormHook struct {
	op       string
	register func(name string, fn func(*gorm.DB)) error
}

// beforeHooks enumerates registration points directly before each built-in
// gorm operation.
func beforeHooks(db *gorm.DB) []gormHook {
	return []gormHook{
		{"create", db.Callback().Create().Before("gorm:create").Register},
		{"query", db.Callback().Query().Before("gorm:query").Register},
		{"update", db.Callback().Update().Before("gorm:update").Register},
		{"delete", db.Callback().Delete().Before("gorm:delete").Register},
		{"row", db.Callback().Row().Before("gorm:row").Register},
		{"raw", db.Callback().Raw().Before("gorm:raw").Register},
	}
}

// afterHooks enumerates registration points directly after each built-in
// gorm operation.
func afterHooks(db *gorm.DB) []gormHook {
	return []gormHook{
		{"create", db.Callback().Create().After("gorm:create").Register},
		{"query", db.Callback().Query().After("gorm:query").Register},
		{"update", db.Callback().Update().After("gorm:update").Register},
		{"delete", db.Callback().Delete().After("gorm:delete").Register},
		{"row", db.Callback().Row().After("gorm:row").Register},
		{"raw", db.Callback().Raw().After("gorm:raw").Register},
	}
}

// registerHooks attaches fn at every hook point, naming registrations
// {prefix}:{op} so colliding plugins fail loudly at startup.
func registerHooks(hooks []gormHook, prefix string, fn func(*gorm.DB)) error {
	for _, h := range hooks {
		if err := h.register(prefix+":"+h.op, fn); err != nil {
			return err
		}
	}
	return nil
}

type gormStartKey struct{}

// stampQueryStart records the operation start on the statement context so
// after-hooks can measure elapsed time.
func stampQueryStart(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, gormStartKey{}, time.Now())
}

// queryElapsed reads the duration since stampQueryStart. ok is false when
// no before-hook ran for this statement.
func queryElapsed(ctx context.Context) (time.Duration, bool) {
	if ctx == nil {
		return 0, false
	}
	start, ok := ctx.Value(gormStartKey{}).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}
