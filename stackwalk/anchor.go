package stackwalk

import "github.com/embervm/stackwalk-go/internal/fatal"

// AnchorLayout describes the fixed layout of a transition anchor: the record
// a bridging stub writes into thread-local storage when crossing between
// managed and native code. Anchors chain through the previous link; an
// anchor with a zero recorded PC marks a managed-code entry point frame,
// while a non-zero PC marks the last managed call site before a native
// excursion. The two kinds strictly alternate along the chain.
type AnchorLayout struct {
	PreviousOffset int
	PCOffset       int
	SPOffset       int
	FPOffset       int
}

// DefaultAnchorLayout is the layout written by the standard bridging stubs:
// four pointer-sized fields.
var DefaultAnchorLayout = AnchorLayout{
	PreviousOffset: 0,
	PCOffset:       8,
	SPOffset:       16,
	FPOffset:       24,
}

// nextNativeStubAnchor gets the next anchor recorded by a bridging stub on
// this stack, consuming it from the walker's view of the chain. A zero
// return means there are no managed frames above the current position; it is
// a normal stop, not an error.
func (w *Walker) nextNativeStubAnchor() uintptr {
	if w.currentAnchor == 0 {
		// We're at an entry point that has no managed frames above it.
		return 0
	}

	// Skip over an anchor marking an entry point frame. The zero-PC test is
	// done on raw memory so it also works when inspecting a separate address
	// space.
	pc := w.target.ReadWord(w.currentAnchor, w.anchors.PCOffset)
	if pc == 0 {
		w.currentAnchor = w.target.ReadWord(w.currentAnchor, w.anchors.PreviousOffset)
		if w.currentAnchor == 0 {
			return 0
		}
	}

	pc = w.target.ReadWord(w.currentAnchor, w.anchors.PCOffset)
	if pc == 0 {
		// Anchors must alternate between entry and exit records.
		fatal.Unexpected("found two adjacent entry point transition anchors")
	}
	anchor := w.currentAnchor
	w.currentAnchor = w.target.ReadWord(anchor, w.anchors.PreviousOffset)
	return anchor
}

// advanceFrameInNative advances the walker past the run of native frames at
// the top of a stack whose thread is executing in native code, resuming at
// the managed call site recorded by the most recent exit anchor.
func (w *Walker) advanceFrameInNative(purpose Purpose) {
	anchor := w.nextNativeStubAnchor()
	fatal.Check(anchor != 0, "no bridging stub anchor found when executing in native code")
	pc := w.target.ReadWord(anchor, w.anchors.PCOffset)
	fatal.Check(pc != 0, "thread cannot be in native code without having recorded the last managed caller in thread locals")
	w.Advance(
		w.nativeCallAddressInStub(pc, !purpose.inspecting()),
		w.target.ReadWord(anchor, w.anchors.SPOffset),
		w.target.ReadWord(anchor, w.anchors.FPOffset),
	)
}

// advanceVMEntryPointFrame advances the walker through the frame of a VM
// entry point method to its native caller's managed predecessor. Returns
// false if there is no anchor above, i.e. the entry point is the outermost
// managed frame.
func (w *Walker) advanceVMEntryPointFrame(lastManagedCallee CodeDescriptor) bool {
	m := lastManagedCallee.Method()
	if m == nil || !m.IsVMEntryPoint() {
		return false
	}
	anchor := w.nextNativeStubAnchor()
	if anchor == 0 {
		return false
	}
	pc := w.target.ReadWord(anchor, w.anchors.PCOffset)
	w.Advance(
		w.nativeCallAddressInStub(pc, true),
		w.target.ReadWord(anchor, w.anchors.SPOffset),
		w.target.ReadWord(anchor, w.anchors.FPOffset),
	)
	return true
}

// nativeCallAddressInStub locates the outbound native call inside the
// bridging stub containing ip and returns its address plus one byte. Return
// addresses observed elsewhere in the walk are one past the call
// instruction, so the plus one keeps the representation uniform.
//
// If the stub or its call site cannot be found, the condition is fatal when
// fatalIfNotFound is set; otherwise ip is returned as a best-effort answer
// for the inspecting purposes.
func (w *Walker) nativeCallAddressInStub(ip uintptr, fatalIfNotFound bool) uintptr {
	stub, ok := w.target.ResolveCode(ip).(NativeStubCode)
	if ok {
		pos := stub.CodePositionFor(ip)
		callPos := stub.NextCallSite(pos)
		if callPos >= 0 {
			if w.cfg.trace && w.purpose == ReferenceMapPreparing {
				w.tracef("stackwalk: resume ip in bridging stub [%#x+%d]", stub.CodeStart(), callPos+1)
			}
			return stub.CodeStart() + uintptr(callPos) + 1
		}
	}
	if fatalIfNotFound {
		if !ok {
			fatal.Unexpected("could not find bridging stub for instruction pointer %#x", ip)
		}
		fatal.Unexpected("could not find native call after %#x+%d in bridging stub", stub.CodeStart(), ip-stub.CodeStart())
	}
	return ip
}
