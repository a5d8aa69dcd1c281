// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import "cogentcore.org/core/base/errors"

var (
	// ErrOutOfDate is returned by surface acquire and present when the
	// surface no longer matches its swapchain, e.g., after a resize.
	// It is recoverable: the frame output is skipped and the frame
	// resources are recreated.
	ErrOutOfDate = errors.New("gpu: surface out of date")

	// ErrSuboptimal is returned when the surface can still be presented
	// to but no longer matches exactly. It is handled like [ErrOutOfDate].
	ErrSuboptimal = errors.New("gpu: surface suboptimal")

	// ErrTimeout is returned by a fence wait that did not complete in time.
	ErrTimeout = errors.New("gpu: wait timed out")

	// ErrDeviceLost is the fatal condition of a frame slot that never
	// completes: acquisition is not retried.
	ErrDeviceLost = errors.New("gpu: device lost")

	// ErrNotRecording is returned when a command is recorded outside
	// of a Begin / End bracket.
	ErrNotRecording = errors.New("gpu: recorder is not recording")

	// ErrNoPass is returned for a draw issued without an open pass.
	ErrNoPass = errors.New("gpu: draw requires an open pass")

	// ErrAlreadySubmitted is returned when a recording is submitted
	// twice without an intervening Reset.
	ErrAlreadySubmitted = errors.New("gpu: recording already submitted")
)

// IsSurfaceStale returns true if the error is one of the two
// recoverable surface conditions that trigger recreation.
func IsSurfaceStale(err error) bool {
	return errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSuboptimal)
}
