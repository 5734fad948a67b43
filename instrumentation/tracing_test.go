package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestRecordError_NilSafe(t *testing.T) {
	// Must not panic with a nil span or nil error
	RecordError(nil, errors.New("some error"))
	RecordError(nil, nil)

	inst, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, span := inst.Tracer("server").Start(context.Background(), "test")
	defer span.End()

	RecordError(span, errors.New("some error"))
	RecordError(span, nil)
}

func TestSpanHelpers_NilSafe(t *testing.T) {
	SetSpanSuccess(nil)
	SetSpanError(nil, "failed")
	SetSpanAttributes(nil, attribute.String("key", "value"))
	AddGrantAttributes(nil, "client", "user", "read write")
	AddStorageAttributes(nil, "save_auth_code", "memory")
}

func TestSpanHelpers_WithSpan(t *testing.T) {
	inst, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, span := inst.Tracer("storage").Start(context.Background(), "test")
	defer span.End()

	SetSpanAttributes(span, attribute.String("key", "value"))
	AddGrantAttributes(span, "client", "user", "read write")
	AddGrantAttributes(span, "", "", "")
	AddStorageAttributes(span, "consume_auth_code", "memory")
	SetSpanSuccess(span)
	SetSpanError(span, "failed")
}
