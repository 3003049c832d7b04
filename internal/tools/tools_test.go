package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCatalogOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(mcp.NewTool("b_tool", mcp.WithDescription("second")), nopHandler)
	reg.Register(mcp.NewTool("a_tool", mcp.WithDescription("first")), nopHandler)
	reg.Register(mcp.NewTool("c_tool", mcp.WithDescription("third")), nopHandler)

	catalog := reg.Catalog()
	require.Len(t, catalog, 3)

	// Registration order, not lexical order.
	assert.Equal(t, "b_tool", catalog[0].Name)
	assert.Equal(t, "a_tool", catalog[1].Name)
	assert.Equal(t, "c_tool", catalog[2].Name)
	assert.Equal(t, 3, reg.Len())
}

func TestRegistryDuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register(mcp.NewTool("dup"), nopHandler)

	assert.Panics(t, func() {
		reg.Register(mcp.NewTool("dup"), nopHandler)
	})
}

func TestRegistryCall(t *testing.T) {
	reg := NewRegistry()
	reg.Register(mcp.NewTool("echo"), func(ctx context.Context, caps *Capabilities, args map[string]any) (any, error) {
		return args["value"], nil
	})

	result, err := reg.Call(context.Background(), nil, "echo", map[string]any{"value": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestRegistryCallUnknownTool(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Call(context.Background(), nil, "nope", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTool))
	assert.Contains(t, err.Error(), "nope")
}

func TestRegistryCallNilArgs(t *testing.T) {
	reg := NewRegistry()
	reg.Register(mcp.NewTool("check"), func(ctx context.Context, caps *Capabilities, args map[string]any) (any, error) {
		require.NotNil(t, args)
		return "ok", nil
	})

	_, err := reg.Call(context.Background(), nil, "check", nil)
	require.NoError(t, err)
}

func nopHandler(ctx context.Context, caps *Capabilities, args map[string]any) (any, error) {
	return nil, nil
}
