// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gpu is the backend-neutral core of the Pyro frame pipeline.
// It tracks image layouts, records commands, keeps N frames in flight
// and defers uniform updates until bind time, on top of a [Device]
// implemented by a driver package (gpu/vkgpu for Vulkan, gpu/soft for
// the headless software driver).
package gpu

import (
	"fmt"
	"log/slog"
	"runtime"
)

// Debug turns on hard assertions for programmer-contract violations,
// such as setting an undeclared uniform or drawing outside of a pass.
// When false, violations are logged and the offending call is ignored.
var Debug = true

// IfPanic checks if there is an error and panics if so,
// after logging it. It is used for fatal, unrecoverable
// conditions such as device creation or allocation failure.
func IfPanic(err error) bool {
	if err != nil {
		slog.Error("gpu: fatal", "err", err)
		panic(err)
	}
	return false
}

// Assert reports a programmer-contract violation. It returns
// true if the condition holds. If it does not hold and [Debug]
// is set, it panics; otherwise it logs an error with the caller.
func Assert(cond bool, format string, args ...any) bool {
	if cond {
		return true
	}
	msg := fmt.Sprintf(format, args...)
	if Debug {
		panic("gpu assertion failed: " + msg)
	}
	_, file, line, _ := runtime.Caller(1)
	slog.Error("gpu assertion failed", "msg", msg, "at", fmt.Sprintf("%s:%d", file, line))
	return false
}
