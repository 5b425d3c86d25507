package toolbridge

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	s := &fakeSession{CallFn: func(_ context.Context, name string, _ map[string]any) (*CallResult, error) {
		if name == "bad" {
			return nil, errors.New("fail")
		}
		return textResult("ok"), nil
	}}
	wrapped := Logging(logger)(s)

	_, err := wrapped.CallTool(context.Background(), "good", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "tool call start")
	assert.Contains(t, buf.String(), "tool call end")
	assert.Contains(t, buf.String(), `"tool":"good"`)

	buf.Reset()
	_, err = wrapped.CallTool(context.Background(), "bad", nil)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "tool call error")
	assert.Contains(t, buf.String(), `"error":"fail"`)
}

func TestRecoverMiddleware(t *testing.T) {
	s := &fakeSession{CallFn: func(context.Context, string, map[string]any) (*CallResult, error) {
		panic("boom")
	}}
	res, err := Recover()(s).CallTool(context.Background(), "x", nil)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, IsSystemError(err))
	var pe *panicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.p)
	assert.False(t, IsInterrupt(err))
}

func TestRecoverMiddleware_InterruptPanic(t *testing.T) {
	in := &Interrupt{Value: "stop"}
	s := &fakeSession{CallFn: func(context.Context, string, map[string]any) (*CallResult, error) {
		panic(in)
	}}
	_, err := Recover()(s).CallTool(context.Background(), "x", nil)
	require.Error(t, err)
	got, ok := AsInterrupt(err)
	require.True(t, ok)
	assert.Same(t, in, got)
}

func TestTimeoutMiddleware(t *testing.T) {
	s := &fakeSession{CallFn: func(ctx context.Context, _ string, _ map[string]any) (*CallResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	_, err := Timeout(10*time.Millisecond)(s).CallTool(context.Background(), "slow", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	fast := &fakeSession{}
	res, err := Timeout(0)(fast).CallTool(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Content[0].Text)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(tag string) Middleware {
		return func(next Session) Session {
			return &orderSession{sessionBase: sessionBase{next: next}, tag: tag, order: &order}
		}
	}
	s := Chain(&fakeSession{}, mark("outer"), mark("inner"))
	_, err := s.CallTool(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)

	tools, err := s.ListTools(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tools)
}

type orderSession struct {
	sessionBase
	tag   string
	order *[]string
}

func (o *orderSession) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	*o.order = append(*o.order, o.tag)
	return o.next.CallTool(ctx, name, args)
}
