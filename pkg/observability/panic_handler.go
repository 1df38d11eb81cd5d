package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoverPanic recovers from a panic and logs it with structured logging
//
// Usage in defer statements:
//
//	func riskyOperation() {
//	    defer observability.RecoverPanic(logger, "risky operation")
//	    // ... code that might panic
//	}
//
// After logging, the panic is NOT re-raised.
func RecoverPanic(logger logrus.FieldLogger, context string) {
	if r := recover(); r != nil {
		logPanic(logger, context, r)
	}
}

// RecoverToError converts a panic into an error assigned to *err
//
// Usage with named results, typically inside a worker goroutine:
//
//	func process() (err error) {
//	    defer observability.RecoverToError(logger, "process user", &err)
//	    // ... code that might panic
//	}
func RecoverToError(logger logrus.FieldLogger, context string, err *error) {
	if r := recover(); r != nil {
		logPanic(logger, context, r)
		*err = fmt.Errorf("panic in %s: %v", context, r)
	}
}

func logPanic(logger logrus.FieldLogger, context string, r any) {
	logger.WithFields(logrus.Fields{
		"panic":   r,
		"stack":   string(debug.Stack()),
		"context": context,
	}).Error("PANIC recovered")
}
