package ctxfirst

import "context"

func Query(ctx context.Context, include []string) error {
	return ctx.Err()
}

func Build(targets []string, ctx context.Context) error { // want "context.Context should be the first parameter"
	return ctx.Err()
}

func NoContext(a, b string) string { return a + b }

var onBatch = func(paths []string, ctx context.Context) {} // want "context.Context should be the first parameter"

func Run(ctx context.Context) {
	onBatch(nil, ctx)
}
