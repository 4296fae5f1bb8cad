package stackwalk

import (
	"log"
	"os"
)

// ENV_TRACE enables walk tracing for walkers not explicitly configured with
// WithTracing.
const ENV_TRACE = "STACKWALK_TRACE"

// Logger is the sink for trace output.
type Logger func(format string, args ...interface{})

func makeDefaultConfig() config {
	return config{
		trace:       os.Getenv(ENV_TRACE) != "",
		traceLogger: log.Printf,
		anchors:     DefaultAnchorLayout,
	}
}

// The trace helpers test the flag before touching their arguments so that a
// walker with tracing off boxes nothing into the variadic slice; the
// allocation-free purposes depend on this.

func (w *Walker) tracef(format string, args ...interface{}) {
	if w.cfg.trace {
		w.cfg.traceLogger(format, args...)
	}
}

func (w *Walker) traceWalkStart(purpose Purpose) {
	if !w.cfg.trace {
		return
	}
	w.cfg.traceLogger("stackwalk: start walk for %s", purpose)
}

func (w *Walker) traceWalkEnd(purpose Purpose) {
	if !w.cfg.trace {
		return
	}
	w.cfg.traceLogger("stackwalk: finish walk for %s", purpose)
}

func (w *Walker) traceNativeFrame() {
	if !w.cfg.trace {
		return
	}
	w.cfg.traceLogger("stackwalk: frame for native function [ip=%#x]", w.current.instructionPointer)
}

func (w *Walker) traceCompiledFrame(topFrame bool, code CodeDescriptor) {
	if !w.cfg.trace {
		return
	}
	name := "<no method>"
	if m := code.Method(); m != nil {
		name = m.Name()
	}
	w.cfg.traceLogger("stackwalk: frame for %s, pc=%#x [%#x+%d], topFrame=%t",
		name, w.current.instructionPointer, code.CodeStart(),
		w.current.instructionPointer-code.CodeStart(), topFrame)
}
