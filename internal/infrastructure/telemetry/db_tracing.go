package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EnableDBTracing registers the otelgorm plugin on the GORM instance so every
// query shows up as a child span of the request trace. Query variables stay
// out of the spans.
func EnableDBTracing(db *gorm.DB, logger *zap.Logger) error {
	plugin := otelgorm.NewPlugin(
		otelgorm.WithDBName("postgresql"),
		otelgorm.WithoutQueryVariables(),
	)
	if err := db.Use(plugin); err != nil {
		return err
	}
	if err := registerSpanEnrichment(db); err != nil {
		return err
	}

	logger.Info("database tracing enabled")
	return nil
}

// registerSpanEnrichment adds callbacks that annotate the otelgorm span with
// rows affected, the table touched and any error
func registerSpanEnrichment(db *gorm.DB) error {
	if err := db.Callback().Create().After("gorm:create").Register("otel_enrich:after_create", enrichSpan); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("otel_enrich:after_query", enrichSpan); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("otel_enrich:after_update", enrichSpan); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("otel_enrich:after_delete", enrichSpan); err != nil {
		return err
	}
	if err := db.Callback().Row().After("gorm:row").Register("otel_enrich:after_row", enrichSpan); err != nil {
		return err
	}
	return db.Callback().Raw().After("gorm:raw").Register("otel_enrich:after_raw", enrichSpan)
}

func enrichSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
}
