package grablib

import (
	"log"
	"runtime/debug"
	"sync"
)

// safeGo runs fn in a goroutine with panic recovery so a misbehaving
// worker cannot take down the daemon. If wg is non-nil it is decremented
// on completion, normal or panic. Panics are logged with stack traces when
// l is non-nil.
func safeGo(l *log.Logger, wg *sync.WaitGroup, context string, fn func()) {
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		defer func() {
			if r := recover(); r != nil && l != nil {
				l.Printf("PANIC [%s]: %v\n%s", context, r, debug.Stack())
			}
		}()
		fn()
	}()
}
