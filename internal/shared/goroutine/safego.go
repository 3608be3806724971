// Package goroutine wraps background goroutine launches with panic
// recovery. Every long-lived loop in the service (capture worker,
// schedulers, bot poller) goes through SafeGo.
package goroutine

import (
	"fmt"
	"runtime/debug"

	"dropcode/internal/shared/logger"
)

// SafeGo runs fn on a new goroutine under a recover guard. A panic is
// logged with its stack under the given name rather than taking the
// whole process down.
func SafeGo(log logger.Interface, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("goroutine panicked",
					"goroutine", name,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
