// Package errs re-exports github.com/cockroachdb/errors so the rest of
// the console shares one error-handling surface: stack traces, wrapping,
// and Is/As-based inspection, without every package importing the
// upstream module directly.
package errs

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

var (
	Is     = crdb.Is
	As     = crdb.As
	Unwrap = crdb.Unwrap
)

var (
	WithHint   = crdb.WithHint
	WithDetail = crdb.WithDetail
)
