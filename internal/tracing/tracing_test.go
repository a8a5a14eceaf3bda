package tracing

import (
	"context"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/utils"
)

func TestNewJaegerTracer_Disabled(t *testing.T) {
	tracer, closer, err := NewJaegerTracer(&JaegerConfig{Enabled: false}, logger.NewNopLogger())

	require.NoError(t, err)
	assert.IsType(t, opentracing.NoopTracer{}, tracer)
	assert.NoError(t, closer.Close())
}

func TestInitJaeger_EndpointOverridesAgent(t *testing.T) {
	cfg := initJaeger(&JaegerConfig{ServiceName: "inboxsync", AgentHost: "agent", AgentPort: "6831", Endpoint: "http://collector:14268/api/traces"})
	assert.Equal(t, "http://collector:14268/api/traces", cfg.Reporter.CollectorEndpoint)
	assert.Empty(t, cfg.Reporter.LocalAgentHostPort)

	cfg = initJaeger(&JaegerConfig{ServiceName: "inboxsync", AgentHost: "agent", AgentPort: "6831"})
	assert.Equal(t, "agent:6831", cfg.Reporter.LocalAgentHostPort)
}

func TestDefaultSpanTags(t *testing.T) {
	tracer := mocktracer.New()
	span := tracer.StartSpan("op").(*mocktracer.MockSpan)
	ctx := utils.WithCustomContext(context.Background(), &utils.CustomContext{AccountId: "acc_1", RequestId: "req-9"})

	SetDefaultWorkerSpanTags(ctx, span)
	TagFolder(span, "INBOX")

	tags := span.Tags()
	assert.Equal(t, "acc_1", tags[SpanTagAccount])
	assert.Equal(t, "req-9", tags[SpanTagRequestId])
	assert.Equal(t, SpanTagComponentWorker, tags[SpanTagComponent])
	assert.Equal(t, "INBOX", tags[SpanTagFolder])
}

func TestTraceErr_NilSafe(t *testing.T) {
	span := mocktracer.New().StartSpan("op").(*mocktracer.MockSpan)

	TraceErr(nil, assert.AnError)
	TraceErr(span, nil)
	assert.Nil(t, span.Tag("error"))

	TraceErr(span, assert.AnError)
	assert.Equal(t, true, span.Tag("error"))
}
