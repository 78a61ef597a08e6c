package obs

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxRecordedStatement = 300

type querySpanKey struct{}

// PGXTracer implements pgx.QueryTracer so every query issued through the pool
// shows up as a child span of the handling request.
type PGXTracer struct{}

// TraceQueryStart opens a span named after the SQL verb being executed.
func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	statement := strings.TrimSpace(data.SQL)
	name := "pgx.query"
	if statement != "" {
		name = "pgx." + strings.ToLower(strings.Fields(statement)[0])
	}
	ctx, span := otel.Tracer("db.pgx").Start(ctx, name)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", clipStatement(statement)),
	)
	return context.WithValue(ctx, querySpanKey{}, span)
}

// TraceQueryEnd records any error and closes the span.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, ok := ctx.Value(querySpanKey{}).(trace.Span)
	if !ok {
		return
	}
	if data.Err != nil {
		span.RecordError(data.Err)
	}
	span.End()
}

func clipStatement(sql string) string {
	if len(sql) > maxRecordedStatement {
		return sql[:maxRecordedStatement] + "..."
	}
	return sql
}
