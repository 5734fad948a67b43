package instrumentation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "default config",
			config: Config{
				Enabled: false,
			},
			wantErr: false,
		},
		{
			name: "with service name and version",
			config: Config{
				Enabled:        true,
				ServiceName:    "test-service",
				ServiceVersion: "1.0.0",
			},
			wantErr: false,
		},
		{
			name: "empty service name gets default",
			config: Config{
				Enabled:        true,
				ServiceName:    "",
				ServiceVersion: "",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				return
			}

			if inst == nil {
				t.Fatal("New() returned nil instrumentation")
			}

			if inst.Meter("server") == nil {
				t.Error("Meter('server') returned nil")
			}
			if inst.Meter("storage") == nil {
				t.Error("Meter('storage') returned nil")
			}
			if inst.Tracer("server") == nil {
				t.Error("Tracer('server') returned nil")
			}
			if inst.Tracer("storage") == nil {
				t.Error("Tracer('storage') returned nil")
			}
			if inst.Metrics() == nil {
				t.Error("Metrics() returned nil")
			}
			if inst.TracerProvider() == nil {
				t.Error("TracerProvider() returned nil")
			}
			if inst.MeterProvider() == nil {
				t.Error("MeterProvider() returned nil")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := inst.Shutdown(ctx); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
			// Shutdown is idempotent
			if err := inst.Shutdown(ctx); err != nil {
				t.Errorf("Second Shutdown() error = %v", err)
			}
		})
	}
}

func TestInstrumentation_NoOpProviders(t *testing.T) {
	inst, err := New(Config{
		Enabled: false,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()

	// All recording calls should be safe no-ops
	inst.Metrics().RecordGrantCreated(ctx, "test-client")
	inst.Metrics().RecordGrantRevoked(ctx, "test-client")
	inst.Metrics().RecordGrantScopeUpdated(ctx, "test-client")
	inst.Metrics().RecordCodeIssued(ctx, "test-client")
	inst.Metrics().RecordCodeConsumed(ctx, "test-client")
	inst.Metrics().RecordTokenIssued(ctx, "test-client", true)
	inst.Metrics().RecordTokenRefreshed(ctx, "test-client", true)
	inst.Metrics().RecordCodeReuseDetected(ctx)
	inst.Metrics().RecordRefreshReuseDetected(ctx)
	inst.Metrics().RecordAuthFailure(ctx, "bad_secret")
	inst.Metrics().RecordStorageOperation(ctx, "save_auth_code", "success", 1.5)
	inst.Metrics().RecordAuditEvent(ctx, "token_issued")

	// Tracing through no-op providers
	tracer := inst.Tracer("server")
	spanCtx, span := tracer.Start(ctx, "test-span")
	if spanCtx == nil {
		t.Error("Start() returned nil context")
	}
	span.End()
}

func TestInstrumentation_RegisterStorageSizeCallbacks(t *testing.T) {
	inst, err := New(Config{Enabled: true, ServiceName: "test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = inst.RegisterStorageSizeCallbacks(
		func() int64 { return 1 },
		func() int64 { return 2 },
		func() int64 { return 3 },
		func() int64 { return 4 },
	)
	if err != nil {
		t.Errorf("RegisterStorageSizeCallbacks() error = %v", err)
	}

	// Nil callbacks are allowed
	err = inst.RegisterStorageSizeCallbacks(nil, nil, nil, nil)
	if err != nil {
		t.Errorf("RegisterStorageSizeCallbacks(nil...) error = %v", err)
	}
}

func TestInstrumentation_ShutdownPropagatesError(t *testing.T) {
	inst, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	wantErr := errors.New("shutdown failed")
	inst.shutdownFuncs = append(inst.shutdownFuncs,
		func(context.Context) error { return wantErr },
		func(context.Context) error { return errors.New("second error") },
	)

	if got := inst.Shutdown(context.Background()); !errors.Is(got, wantErr) {
		t.Errorf("Shutdown() error = %v, want %v", got, wantErr)
	}
}
