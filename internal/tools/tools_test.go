package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func stubTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: name + " description",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "ran " + name, nil
		},
	}
}

func TestRegistryOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool("search"))
	r.Register(stubTool("avalanche"))
	r.Register(stubTool("forecast"))

	want := []string{"search", "avalanche", "forecast"}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	list := r.List()
	for i, tool := range list {
		if tool.Name != want[i] {
			t.Errorf("List()[%d].Name = %q, want %q", i, tool.Name, want[i])
		}
	}
}

func TestRegistryReregisterKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool("a"))
	r.Register(stubTool("b"))
	r.Register(&Tool{
		Name:        "a",
		Description: "replacement",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "new a", nil
		},
	})

	names := r.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v, want [a b]", names)
	}
	if r.Get("a").Description != "replacement" {
		t.Errorf("Get(a).Description = %q", r.Get("a").Description)
	}
}

func TestRegistryGetAndHas(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool("search"))

	if !r.Has("search") {
		t.Error("Has(search) = false")
	}
	if r.Has("missing") {
		t.Error("Has(missing) = true")
	}
	if r.Get("search") == nil {
		t.Error("Get(search) = nil")
	}
	if r.Get("missing") != nil {
		t.Error("Get(missing) != nil")
	}
}

func TestExecute(t *testing.T) {
	r := NewRegistry()
	var gotArgs map[string]any
	r.Register(&Tool{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			gotArgs = args
			return fmt.Sprintf("query=%v", args["query"]), nil
		},
	})

	out, err := r.Execute(context.Background(), "echo", map[string]any{"query": "snow"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "query=snow" {
		t.Errorf("output = %q", out)
	}
	if gotArgs["query"] != "snow" {
		t.Errorf("args = %v", gotArgs)
	}
}

func TestExecuteNilArgs(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name: "noargs",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if args == nil {
				t.Error("handler received nil args, want empty map")
			}
			return "ok", nil
		},
	})

	if _, err := r.Execute(context.Background(), "noargs", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "ghost", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestExecuteHandlerError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("upstream unavailable")
	r.Register(&Tool{
		Name: "flaky",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", boom
		},
	})

	_, err := r.Execute(context.Background(), "flaky", nil)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
