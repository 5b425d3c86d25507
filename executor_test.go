package toolbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Success(t *testing.T) {
	s, e := source(t, func(_ context.Context, name string, args map[string]any) (*CallResult, error) {
		assert.Equal(t, "search", name)
		assert.Equal(t, map[string]any{"query": "foo"}, args)
		return textResult("bar"), nil
	}, []string{"search"})

	msg, ok, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "search", Arguments: map[string]any{"query": "foo"}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ToolMessage{Name: "search", CallID: "1", Content: TextContent("bar"), Status: StatusSuccess}, msg)
	assert.Equal(t, []string{"search"}, s.Calls())
}

func TestExecutor_ToolReportedError(t *testing.T) {
	_, e := source(t, func(context.Context, string, map[string]any) (*CallResult, error) {
		return &CallResult{Content: []ContentBlock{TextBlock("no such city")}, IsError: true}, nil
	}, []string{"weather"})

	msg, ok, err := e.Execute(context.Background(), ToolCall{ID: "7", Name: "weather"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusError, msg.Status)
	assert.Equal(t, "no such city", msg.Content.String())
	assert.Equal(t, "7", msg.CallID)
}

func TestExecutor_ContentNormalization(t *testing.T) {
	image := ContentBlock{Type: BlockImage, Data: "aGk=", MIMEType: "image/png"}
	tests := []struct {
		name   string
		blocks []ContentBlock
		want   Content
	}{
		{"none", nil, TextContent("")},
		{"single text", []ContentBlock{TextBlock("hi")}, TextContent("hi")},
		{"two text", []ContentBlock{TextBlock("a"), TextBlock("b")}, BlockContent(TextBlock("a"), TextBlock("b"))},
		{"single image", []ContentBlock{image}, BlockContent(image)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, e := source(t, func(context.Context, string, map[string]any) (*CallResult, error) {
				return &CallResult{Content: tt.blocks}, nil
			}, []string{"x"})
			msg, ok, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "x"})
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, msg.Content)
		})
	}
}

func TestExecutor_NilResult(t *testing.T) {
	_, e := source(t, func(context.Context, string, map[string]any) (*CallResult, error) {
		return nil, nil
	}, []string{"x"})
	msg, ok, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "x"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, msg.Status)
	assert.Equal(t, "", msg.Content.String())
}

func TestExecutor_Declines(t *testing.T) {
	s, e := source(t, nil, []string{"search", "rm"}, WithDeny("rm"))

	_, ok, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "fetch"})
	require.NoError(t, err)
	assert.False(t, ok, "name not in catalog")

	_, ok, err = e.Execute(context.Background(), ToolCall{ID: "2", Name: "rm"})
	require.NoError(t, err)
	assert.False(t, ok, "name denied")

	assert.Empty(t, s.Calls())
	assert.Equal(t, []string{"search"}, e.Names())
	assert.Equal(t, []string{"search", "rm"}, e.Catalog().Names())
}

func TestExecutor_AllowListLimitsCatalog(t *testing.T) {
	_, e := source(t, nil, []string{"a", "b", "c"}, WithAllow("c", "a", "zzz"))
	assert.Equal(t, []string{"a", "c"}, e.Names())
	assert.True(t, e.Accepts("a"))
	assert.False(t, e.Accepts("b"))
	assert.False(t, e.Accepts("zzz"), "allowed but not in catalog")
	require.Len(t, e.Bindings(), 2)
}

func TestExecutor_UnknownReport(t *testing.T) {
	_, e := source(t, nil, []string{"search", "time", "rm"}, WithDeny("rm"), WithUnknownMode(UnknownReport))
	msg, ok, err := e.Execute(context.Background(), ToolCall{ID: "9", Name: "rm"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusError, msg.Status)
	assert.Equal(t, "9", msg.CallID)
	assert.Equal(t, "Error: rm is not a valid tool, try one of [search, time].", msg.Content.String())
}

func TestExecutor_TransportErrorCaught(t *testing.T) {
	_, e := source(t, func(context.Context, string, map[string]any) (*CallResult, error) {
		return nil, errors.New("broken pipe")
	}, []string{"search"})
	msg, ok, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "search"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ToolMessage{
		Name:    "search",
		CallID:  "1",
		Content: TextContent("Error: broken pipe\n Please fix your mistakes."),
		Status:  StatusError,
	}, msg)
}

func TestExecutor_PolicyReRaises(t *testing.T) {
	transport := errors.New("broken pipe")
	_, e := source(t, func(context.Context, string, map[string]any) (*CallResult, error) {
		return nil, transport
	}, []string{"search"}, WithErrorPolicy(CatchNone()))
	_, ok, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "search"})
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, transport)
	assert.Contains(t, err.Error(), `tool "search" (call 1)`)
}

func TestExecutor_InterruptPropagatesUnmodified(t *testing.T) {
	in := &Interrupt{Value: "need approval"}
	for _, p := range []ErrorPolicy{CatchAll(), CatchFunc(func(error) (string, bool) { return "x", true }), CatchNone()} {
		t.Run(p.String(), func(t *testing.T) {
			_, e := source(t, func(context.Context, string, map[string]any) (*CallResult, error) {
				return nil, in
			}, []string{"ask"}, WithErrorPolicy(p))
			_, ok, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "ask"})
			assert.False(t, ok)
			assert.Same(t, in, err)
		})
	}
}

func TestExecutor_PanicRecovered(t *testing.T) {
	_, e := source(t, func(context.Context, string, map[string]any) (*CallResult, error) {
		panic("kaboom")
	}, []string{"x"})
	msg, ok, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "x"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusError, msg.Status)
	assert.Contains(t, msg.Content.String(), "internal system error during tool execution")
	assert.NotContains(t, msg.Content.String(), "kaboom")
}

func TestExecutor_PanickedInterruptPropagates(t *testing.T) {
	in := &Interrupt{Value: "need approval"}
	_, e := source(t, func(context.Context, string, map[string]any) (*CallResult, error) {
		panic(in)
	}, []string{"ask"})
	_, ok, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "ask"})
	assert.False(t, ok)
	assert.Same(t, in, err)
}

func TestExecutor_DefaultLoggerIsNop(t *testing.T) {
	e := NewExecutor(&fakeSession{}, nil)
	assert.Equal(t, zerolog.Disabled, e.opts.logger.GetLevel())
}

func TestExecutor_ArgumentValidation(t *testing.T) {
	s := &fakeSession{
		Tools: []RemoteTool{{Name: "search", InputSchema: raw(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`)}},
	}
	e := NewExecutor(s, BuildCatalog(context.Background(), s),
		WithArgumentValidation(),
		WithErrorPolicy(CatchTypes(ErrorOfType[*ClientError]())))

	msg, ok, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "search", Arguments: map[string]any{}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusError, msg.Status)
	assert.Contains(t, msg.Content.String(), "invalid tool input")
	assert.Empty(t, s.Calls(), "invalid arguments never reach the server")

	msg, ok, err = e.Execute(context.Background(), ToolCall{ID: "2", Name: "search", Arguments: map[string]any{"query": "go"}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, msg.Status)
	assert.Equal(t, []string{"search"}, s.Calls())
}

func TestExecutor_Hooks(t *testing.T) {
	var before, after atomic.Int32
	var got CallSummary
	var mu sync.Mutex
	_, e := source(t, func(context.Context, string, map[string]any) (*CallResult, error) {
		return nil, errors.New("fail")
	}, []string{"x"},
		WithOnBeforeCall(func(context.Context, ToolCall) { before.Add(1) }),
		WithOnAfterCall(func(_ context.Context, _ ToolCall, s CallSummary) {
			after.Add(1)
			mu.Lock()
			got = s
			mu.Unlock()
		}))

	_, _, err := e.Execute(context.Background(), ToolCall{ID: "c1", Name: "x"})
	require.NoError(t, err)
	_, _, err = e.Execute(context.Background(), ToolCall{ID: "c2", Name: "unknown"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), before.Load(), "declined calls do not fire hooks")
	assert.Equal(t, int32(1), after.Load())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "c1", got.CallID)
	assert.Equal(t, "x", got.ToolName)
	assert.Equal(t, StatusError, got.Status)
	assert.True(t, got.Handled)
	assert.EqualError(t, got.Error, "fail")
}

func TestExecutor_Middleware(t *testing.T) {
	var seen atomic.Int32
	count := func(next Session) Session {
		return &countingSession{sessionBase: sessionBase{next: next}, n: &seen}
	}
	_, e := source(t, nil, []string{"x"}, WithMiddleware(count))
	_, _, err := e.Execute(context.Background(), ToolCall{ID: "1", Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), seen.Load())
}

type countingSession struct {
	sessionBase
	n *atomic.Int32
}

func (c *countingSession) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	c.n.Add(1)
	return c.next.CallTool(ctx, name, args)
}

func TestExecutor_ExecuteAll_Positional(t *testing.T) {
	_, e := source(t, func(_ context.Context, name string, args map[string]any) (*CallResult, error) {
		// later calls finish first
		d := args["delay"].(int)
		time.Sleep(time.Duration(d) * time.Millisecond)
		return textResult(fmt.Sprintf("%s-%d", name, d)), nil
	}, []string{"sleep"}, WithMaxConcurrency(0))

	calls := []ToolCall{
		{ID: "a", Name: "sleep", Arguments: map[string]any{"delay": 30}},
		{ID: "b", Name: "sleep", Arguments: map[string]any{"delay": 15}},
		{ID: "c", Name: "missing"},
		{ID: "d", Name: "sleep", Arguments: map[string]any{"delay": 1}},
	}
	out, err := e.ExecuteAll(context.Background(), calls)
	require.NoError(t, err)
	require.Len(t, out, len(calls))
	for i, c := range calls {
		assert.Equal(t, c.ID, out[i].CallID)
	}
	assert.Equal(t, "sleep-30", out[0].Content.String())
	assert.Equal(t, "sleep-1", out[3].Content.String())
	assert.Equal(t, StatusError, out[2].Status)
	assert.Equal(t, "Error: missing is not a valid tool, try one of [sleep].", out[2].Content.String())
}

func TestExecutor_ExecuteAll_Concurrent(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	_, e := source(t, func(context.Context, string, map[string]any) (*CallResult, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return textResult("ok"), nil
	}, []string{"x"}, WithMaxConcurrency(2))

	calls := make([]ToolCall, 5)
	for i := range calls {
		calls[i] = ToolCall{ID: fmt.Sprint(i), Name: "x"}
	}
	done := make(chan []ToolMessage)
	go func() {
		out, _ := e.ExecuteAll(context.Background(), calls)
		done <- out
	}()
	require.Eventually(t, func() bool { return inFlight.Load() == 2 }, time.Second, time.Millisecond)
	close(release)
	out := <-done
	require.Len(t, out, 5)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestExecutor_ExecuteAll_InterruptWins(t *testing.T) {
	in := &Interrupt{}
	_, e := source(t, func(_ context.Context, name string, _ map[string]any) (*CallResult, error) {
		if name == "pause" {
			return nil, in
		}
		return nil, errors.New("other")
	}, []string{"fail", "pause"}, WithErrorPolicy(CatchNone()))

	out, err := e.ExecuteAll(context.Background(), []ToolCall{{ID: "1", Name: "fail"}, {ID: "2", Name: "pause"}})
	assert.Nil(t, out)
	assert.Same(t, in, err)
}

func TestExecutor_ExecuteAll_Empty(t *testing.T) {
	_, e := source(t, nil, []string{"x"})
	out, err := e.ExecuteAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
