package workflow

import "context"

// Assembler runs the assembly graph on behalf of the coordinator.
type Assembler struct {
	rt *Runtime
}

// NewAssembler creates an Assembler over rt.
func NewAssembler(rt *Runtime) *Assembler {
	return &Assembler{rt: rt}
}

// Assemble merges req's parts and returns the key of the stored result.
func (a *Assembler) Assemble(ctx context.Context, req Request) (string, error) {
	res, err := Execute(ctx, a.rt, req)
	if err != nil {
		a.rt.Logger.ErrorContext(ctx, "assembly failed", "cycle", req.CycleID, "error", err)
		return "", err
	}

	a.rt.Logger.InfoContext(ctx, "assembly complete",
		"cycle", res.CycleID,
		"output", res.Output,
		"size", res.SizeBytes,
	)
	return res.Output, nil
}
