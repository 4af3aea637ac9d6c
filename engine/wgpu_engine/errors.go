// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import "errors"

var (
	// ErrDeviceLost is returned by every device-dependent call between
	// a device-loss notification and a successful recovery.
	ErrDeviceLost = errors.New("device lost")

	// ErrBudgetExceeded is returned when the VRAM profiler declines an
	// allocation. It is always wrapped with the resource's ID, size and
	// category.
	ErrBudgetExceeded = errors.New("memory budget exceeded")

	// ErrUnknownHandle is returned by lookups of handles that were
	// never created or have been destroyed.
	ErrUnknownHandle = errors.New("unknown resource handle")

	// ErrFrameState is returned when a lifecycle call arrives in the
	// wrong order, like beginning a pass with no open frame.
	ErrFrameState = errors.New("invalid frame state")

	// ErrIndexFormatMissing is returned for indexed-indirect draws that
	// don't declare their index format. The format can't be read from
	// the GPU-side argument buffer, so defaulting would be a guess.
	ErrIndexFormatMissing = errors.New("indexed indirect draw without index format")

	// ErrRecoveryFailed is returned when device recovery exhausts its
	// retry budget.
	ErrRecoveryFailed = errors.New("device recovery failed")
)
