package goroutine

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/services-marketplace/internal/logger"
)

// SafeGo запускает fn в горутине. Паника логируется вместе со стеком и не роняет процесс.
func SafeGo(fn func()) {
	go func() {
		defer recoverPanic()
		fn()
	}()
}

func recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	stack := string(debug.Stack())
	if logger.Log == nil {
		fmt.Fprintf(os.Stderr, "[PANIC] %v\n%s\n", r, stack)
		return
	}
	logger.Log.WithFields(logrus.Fields{
		"panic": fmt.Sprint(r),
		"stack": stack,
	}).Error("goroutine: паника перехвачена")
}
