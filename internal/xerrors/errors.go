// Package xerrors provides error handling for nvlockd.
//
// It re-exports github.com/cockroachdb/errors, giving every wrapped error
// a stack trace and an optional operator-facing hint, which matters here
// because scheduler/agent errors are diagnosed from log lines on a remote
// host, not from a debugger attached to the failing process.
//
//	err := xerrors.New("listener closed")
//	return xerrors.Wrap(err, "accept client")
//	return xerrors.WithHint(err, "check socket directory permissions")
package xerrors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping.
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details.
var (
	WithHint  = crdb.WithHint
	WithHintf = crdb.WithHintf
)

// Error inspection.
var (
	Is     = crdb.Is
	As     = crdb.As
	Unwrap = crdb.Unwrap
)
