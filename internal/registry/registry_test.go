package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/soyeahso/actiongw/internal/domain"
	"github.com/soyeahso/actiongw/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return New(logging.New(nil, "silent"))
}

func echoHandler(_ context.Context, params any, _ HandlerContext) (any, error) {
	return params, nil
}

func TestRegistry_Register(t *testing.T) {
	reg := testRegistry()
	require.NoError(t, reg.Register(Entry{Key: "view.open", Module: "view", Handler: echoHandler}))
	assert.True(t, reg.Has("view.open"))
	assert.False(t, reg.Has("view.close"))
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	reg := testRegistry()
	require.NoError(t, reg.Register(Entry{Key: "lead.save", Module: "leads", Handler: echoHandler}))

	err := reg.Register(Entry{Key: "lead.save", Module: "crm", Handler: echoHandler})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateHandler)
	assert.Contains(t, err.Error(), "leads")

	// The first registration wins.
	e, ok := reg.Get("lead.save")
	require.True(t, ok)
	assert.Equal(t, "leads", e.Module)
}

func TestRegistry_Register_Invalid(t *testing.T) {
	reg := testRegistry()
	assert.ErrorIs(t, reg.Register(Entry{Handler: echoHandler}), ErrInvalidEntry)
	assert.ErrorIs(t, reg.Register(Entry{Key: "x"}), ErrInvalidEntry)
	assert.Empty(t, reg.List())
}

func TestRegistry_Register_DoesNotInvoke(t *testing.T) {
	reg := testRegistry()
	called := false
	require.NoError(t, reg.Register(Entry{Key: "k", Handler: func(context.Context, any, HandlerContext) (any, error) {
		called = true
		return nil, nil
	}}))
	assert.False(t, called)
}

func TestRegistry_DefaultModule(t *testing.T) {
	reg := testRegistry()
	require.NoError(t, reg.Register(Entry{Key: "k", Handler: echoHandler}))
	e, _ := reg.Get("k")
	assert.Equal(t, "core", e.Module)
}

func TestRegistry_Execute(t *testing.T) {
	reg := testRegistry()
	require.NoError(t, reg.Register(Entry{Key: "echo", Handler: echoHandler}))

	hc := HandlerContext{Session: domain.Session{ID: "s1", User: "ana", Channel: domain.ChannelWhatsApp}}
	got, err := reg.Execute(context.Background(), "echo", "hello", hc)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	assert.Equal(t, "s1", hc.SessionID())
	assert.Equal(t, "ana", hc.User())
	assert.Equal(t, domain.ChannelWhatsApp, hc.Channel())
}

func TestRegistry_Execute_NotFound(t *testing.T) {
	reg := testRegistry()
	_, err := reg.Execute(context.Background(), "missing", nil, HandlerContext{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	var he *HandlerError
	assert.False(t, errors.As(err, &he))
}

func TestRegistry_Execute_HandlerError(t *testing.T) {
	reg := testRegistry()
	boom := errors.New("smtp down")
	require.NoError(t, reg.Register(Entry{Key: "lead.save", Module: "leads", Handler: func(context.Context, any, HandlerContext) (any, error) {
		return "partial", boom
	}}))

	got, err := reg.Execute(context.Background(), "lead.save", nil, HandlerContext{})
	assert.Nil(t, got)

	var he *HandlerError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "lead.save", he.Key)
	assert.Equal(t, "leads", he.Module)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestRegistry_Execute_RecoversPanic(t *testing.T) {
	reg := testRegistry()
	require.NoError(t, reg.Register(Entry{Key: "bad", Handler: func(context.Context, any, HandlerContext) (any, error) {
		panic("nil map write")
	}}))

	got, err := reg.Execute(context.Background(), "bad", nil, HandlerContext{})
	assert.Nil(t, got)

	var he *HandlerError
	require.ErrorAs(t, err, &he)
	assert.Contains(t, he.Err.Error(), "nil map write")
}

func TestRegistry_ListAndStats(t *testing.T) {
	reg := testRegistry()
	require.NoError(t, reg.Register(Entry{Key: "tool.time", Module: "tools", Handler: echoHandler}))
	require.NoError(t, reg.Register(Entry{Key: "tool.echo", Module: "tools", Handler: echoHandler}))
	require.NoError(t, reg.Register(Entry{Key: "chat.send", Module: "chat", Handler: echoHandler}))

	assert.Equal(t, []string{"chat.send", "tool.echo", "tool.time"}, reg.List())

	entries := reg.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "chat.send", entries[0].Key)

	stats := reg.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, map[string]int{"tools": 2, "chat": 1}, stats.Modules)
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	reg := testRegistry()
	require.NoError(t, reg.Register(Entry{Key: "echo", Handler: echoHandler}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := reg.Execute(context.Background(), "echo", i, HandlerContext{})
			assert.NoError(t, err)
			assert.Equal(t, i, got)
			assert.True(t, reg.Has("echo"))
		}(i)
	}
	wg.Wait()
}

type greetParams struct{ Name string }

func TestTyped(t *testing.T) {
	h := Typed(func(_ context.Context, p greetParams, hc HandlerContext) (string, error) {
		return "hi " + p.Name + " from " + hc.SessionID(), nil
	})

	got, err := h(context.Background(), greetParams{Name: "Budi"}, HandlerContext{Session: domain.Session{ID: "s9"}})
	require.NoError(t, err)
	assert.Equal(t, "hi Budi from s9", got)

	_, err = h(context.Background(), "wrong", HandlerContext{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParamsType)
	assert.Contains(t, err.Error(), "greetParams")
}
