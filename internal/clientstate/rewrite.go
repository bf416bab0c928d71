package clientstate

import "github.com/asyncwatch/console/internal/ids"

// rewriters holds one ids.Rewriter per entity kind. The aggregator's own
// sequential IDs arrive on the wire as plain uint64s; the client treats
// them exactly like the opaque remote span IDs the aggregator itself
// rewrites from, because a fresh server session's IDs are not
// comparable to IDs from a previous connection (spec §4.I "rewriting is
// done again locally").
type rewriters struct {
	task     *ids.Rewriter
	resource *ids.Rewriter
	asyncOp  *ids.Rewriter
}

func newRewriters() rewriters {
	return rewriters{
		task:     ids.NewRewriter(ids.KindTask),
		resource: ids.NewRewriter(ids.KindResource),
		asyncOp:  ids.NewRewriter(ids.KindAsyncOp),
	}
}
