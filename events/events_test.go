package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errors.New("broker down") }

func TestEmit_FillsIDAndTime(t *testing.T) {
	rec := &Recorder{}
	before := time.Now().UTC()

	Emit(context.Background(), rec, Event{Type: TypeRouted, Route: "dashboard", Reason: "entitled"})

	got := rec.OfType(TypeRouted)
	require.Len(t, got, 1)
	_, err := uuid.Parse(got[0].ID)
	assert.NoError(t, err)
	assert.False(t, got[0].OccurredAt.Before(before))
	assert.Equal(t, "dashboard", got[0].Route)
}

func TestEmit_CarriesTraceID(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "bootstrap")
	defer span.End()

	rec := &Recorder{}
	Emit(ctx, rec, Event{Type: TypeRouted})
	Emit(context.Background(), rec, Event{Type: TypeLogin})

	got := rec.Events()
	require.Len(t, got, 2)
	assert.Equal(t, span.SpanContext().TraceID().String(), got[0].TraceID)
	assert.Empty(t, got[1].TraceID)
}

func TestEmit_KeepsProvidedFields(t *testing.T) {
	rec := &Recorder{}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	Emit(context.Background(), rec, Event{ID: "fixed", Type: TypeLogin, OccurredAt: at})

	got := rec.Events()
	require.Len(t, got, 1)
	assert.Equal(t, "fixed", got[0].ID)
	assert.Equal(t, at, got[0].OccurredAt)
}

func TestEmit_SwallowsPublishErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	assert.NotPanics(t, func() {
		Emit(context.Background(), failingPublisher{}, Event{Type: TypeLogout})
	})
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "session.logout", logs.All()[0].ContextMap()["event_type"])
}

func TestEmit_NilPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, Event{Type: TypeLogin})
	})
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
