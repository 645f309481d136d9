package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/reelhub/backend/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	spanKey      = "telemetry:span"
	startTimeKey = "telemetry:start"
	maxStatement = 500
)

// GORMPlugin traces every query and records it in the database metrics
func GORMPlugin() gorm.Plugin {
	return &gormPlugin{tracer: otel.Tracer("gorm")}
}

type gormPlugin struct {
	tracer trace.Tracer
}

func (p *gormPlugin) Name() string {
	return "telemetry:gorm"
}

// gormCallbackRegistrar is the Register half of a gorm callback chain
type gormCallbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

func (p *gormPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	type hooks struct {
		operation, name string
		before          gormCallbackRegistrar
		after           gormCallbackRegistrar
	}
	for _, h := range []hooks{
		{"SELECT", "query", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query")},
		{"INSERT", "create", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create")},
		{"UPDATE", "update", cb.Update().Before("gorm:update"), cb.Update().After("gorm:update")},
		{"DELETE", "delete", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete")},
		{"RAW", "raw", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw")},
		{"ROW", "row", cb.Row().Before("gorm:row"), cb.Row().After("gorm:row")},
	} {
		operation := h.operation
		if err := h.before.Register("telemetry:before_"+h.name, func(tx *gorm.DB) { p.before(tx, operation) }); err != nil {
			return fmt.Errorf("failed to register before_%s callback: %w", h.name, err)
		}
		if err := h.after.Register("telemetry:after_"+h.name, func(tx *gorm.DB) { p.after(tx, operation) }); err != nil {
			return fmt.Errorf("failed to register after_%s callback: %w", h.name, err)
		}
	}
	return nil
}

func (p *gormPlugin) before(db *gorm.DB, operation string) {
	db.InstanceSet(startTimeKey, time.Now())

	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	_, span := p.tracer.Start(ctx, "db."+strings.ToLower(operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", db.Dialector.Name()),
			attribute.String("db.operation", operation),
		),
	)
	db.InstanceSet(spanKey, span)
}

func (p *gormPlugin) after(db *gorm.DB, operation string) {
	table := db.Statement.Table
	if table == "" {
		table = "unknown"
	}

	err := db.Error
	if err == gorm.ErrRecordNotFound {
		err = nil
	}

	if startRaw, ok := db.InstanceGet(startTimeKey); ok {
		if start, ok := startRaw.(time.Time); ok {
			metrics.RecordDatabaseQuery(operation, table, time.Since(start), err)
		}
	}

	spanRaw, ok := db.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := spanRaw.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	span.SetAttributes(attribute.String("db.sql.table", table))
	if sql := db.Statement.SQL.String(); sql != "" {
		if len(sql) > maxStatement {
			sql = sql[:maxStatement] + "... (truncated)"
		}
		span.SetAttributes(attribute.String("db.statement", sql))
	}
	if db.RowsAffected > 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
}
