// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log is a small leveled logger shared by every simcore package.
// It mirrors the calling convention of syzkaller's pkg/log: Logf(level,
// format, args...), with level 0 always printed regardless of the
// configured verbosity.
package log

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var verbosity int32

// SetVerbosity sets the minimum level that will be printed, other than
// level 0 which always prints. The simcore-replay CLI calls it from its
// --verbose flag.
func SetVerbosity(v int) {
	atomic.StoreInt32(&verbosity, int32(v))
}

func Verbosity() int {
	return int(atomic.LoadInt32(&verbosity))
}

var mu sync.Mutex

// Logf prints msg if level is 0 or at or below the configured verbosity.
// Output is serialized so interleaved lines from the simulator thread and
// the fuzzer thread never intermix, matching the teacher's logMu discipline
// around its "executing program" trace line.
func Logf(level int, msg string, args ...interface{}) {
	if level != 0 && level > Verbosity() {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(os.Stderr, "%s %s\n", time.Now().Format("2006/01/02 15:04:05"), fmt.Sprintf(msg, args...))
}

// Fatalf logs at level 0 and terminates the process. Used only for
// InternalInvariantViolation-class bugs where continuing would corrupt
// campaign state.
func Fatalf(msg string, args ...interface{}) {
	Logf(0, "FATAL: "+msg, args...)
	os.Exit(1)
}
