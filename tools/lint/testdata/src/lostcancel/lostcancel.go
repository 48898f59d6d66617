package lostcancel

import (
	"context"
	"time"
)

func buildWithTimeout(ctx context.Context) error {
	ctx, _ = context.WithTimeout(ctx, time.Minute) // want "the cancel function returned by context.WithTimeout should be called, not discarded, to avoid a context leak"
	return ctx.Err()
}

func build(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	return ctx.Err()
}
