package workflow

import (
	"context"
	"fmt"
	"runtime"
	"time"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
)

// Execute runs the assembly graph (fetch → render → merge → store) for req
// and returns the stored result.
func Execute(ctx context.Context, rt *Runtime, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	graph, err := buildGraph(rt)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	initialState := state.New(nil)
	initialState = initialState.Set(KeyRequest, req)

	finalState, err := graph.Execute(ctx, initialState)
	if err != nil {
		return nil, fmt.Errorf("execute graph: %w", err)
	}

	return extractResult(finalState)
}

func buildGraph(rt *Runtime) (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig("tally-assemble")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	nodes := []struct {
		name string
		node state.StateNode
	}{
		{"fetch", FetchNode(rt)},
		{"render", RenderNode(rt)},
		{"merge", MergeNode(rt)},
		{"store", StoreNode(rt)},
	}

	for _, n := range nodes {
		if err := graph.AddNode(n.name, n.node); err != nil {
			return nil, err
		}
	}

	for i := 1; i < len(nodes); i++ {
		if err := graph.AddEdge(nodes[i-1].name, nodes[i].name, nil); err != nil {
			return nil, err
		}
	}

	if err := graph.SetEntryPoint("fetch"); err != nil {
		return nil, err
	}

	if err := graph.SetExitPoint("store"); err != nil {
		return nil, err
	}

	return graph, nil
}

func extractResult(s state.State) (*Result, error) {
	req, err := extractRequest(s)
	if err != nil {
		return nil, err
	}

	merged, err := extractMerged(s)
	if err != nil {
		return nil, err
	}

	return &Result{
		CycleID:     req.CycleID,
		Output:      req.Output,
		Parts:       len(req.Parts),
		SizeBytes:   len(merged),
		CompletedAt: time.Now(),
	}, nil
}

func extractRequest(s state.State) (Request, error) {
	val, ok := s.Get(KeyRequest)
	if !ok {
		return Request{}, fmt.Errorf("%w: missing %s in state", ErrInvalidRequest, KeyRequest)
	}

	req, ok := val.(Request)
	if !ok {
		return Request{}, fmt.Errorf("%w: %s is not Request", ErrInvalidRequest, KeyRequest)
	}

	return req, nil
}

func extractParts(s state.State) ([]partData, error) {
	val, ok := s.Get(KeyParts)
	if !ok {
		return nil, fmt.Errorf("missing %s in state", KeyParts)
	}

	parts, ok := val.([]partData)
	if !ok {
		return nil, fmt.Errorf("%s is not []partData", KeyParts)
	}

	return parts, nil
}

func extractMerged(s state.State) ([]byte, error) {
	val, ok := s.Get(KeyMerged)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s in state", ErrMergeFailed, KeyMerged)
	}

	merged, ok := val.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not []byte", ErrMergeFailed, KeyMerged)
	}

	return merged, nil
}

func workerCount(n int) int {
	return max(min(runtime.NumCPU(), n), 1)
}
