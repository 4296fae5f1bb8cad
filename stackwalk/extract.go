package stackwalk

// ExtractOptions selects which frames of a collected stack contribute
// method identities to ExtractMethods.
type ExtractOptions struct {
	// TopFrame includes the method of the top frame.
	TopFrame bool
	// BridgingFrames includes bridging frames.
	BridgingFrames bool
	// InvisibleFrames includes methods that are not application visible.
	InvisibleFrames bool
	// IgnoreUntilNativeFrame discards everything collected before the first
	// native frame encountered.
	IgnoreUntilNativeFrame bool
}

// ExtractMethods extracts the managed method identities from a sequence of
// collected stack frames, top frame first. A compiled frame with inlining
// metadata contributes all of its methods, outermost caller first. Native
// frames contribute nothing.
func ExtractMethods(resolver CodeResolver, frames []*Frame, opts ExtractOptions) []Method {
	var result []Method
	top := true
	seenNativeFrame := false
	for _, frame := range frames {
		if top {
			top = false
			if !opts.TopFrame {
				continue
			}
		}
		if frame.Kind == FrameBridging && !opts.BridgingFrames {
			continue
		}
		code := resolver.ResolveCode(frame.InstructionPointer)
		if code == nil {
			// Native frame.
			if opts.IgnoreUntilNativeFrame && !seenNativeFrame {
				result = result[:0]
				seenNativeFrame = true
			}
			continue
		}
		if inlined, ok := code.(InlinedCode); ok {
			if methods := inlined.MethodsAt(frame.InstructionPointer); len(methods) > 0 {
				for _, m := range methods {
					result = appendMethod(result, m, opts.InvisibleFrames)
				}
				continue
			}
		}
		if m := code.Method(); m != nil {
			result = appendMethod(result, m, opts.InvisibleFrames)
		}
	}
	return result
}

func appendMethod(result []Method, m Method, invisibleFrames bool) []Method {
	if m.IsApplicationVisible() || invisibleFrames {
		result = append(result, m)
	}
	return result
}

// CallerMethod returns the method identity of the caller of the top frame in
// a sequence of collected stack frames, skipping native frames and code
// without an identity. For a frame with inlining metadata the innermost
// inlined callee is returned. Returns nil if no caller method can be
// resolved.
func CallerMethod(resolver CodeResolver, frames []*Frame) Method {
	top := true
	for _, frame := range frames {
		if top {
			top = false
			continue
		}
		code := resolver.ResolveCode(frame.InstructionPointer)
		if code == nil {
			// Ignore native frames.
			continue
		}
		if inlined, ok := code.(InlinedCode); ok {
			if methods := inlined.MethodsAt(frame.InstructionPointer); len(methods) > 0 {
				return methods[len(methods)-1]
			}
		}
		if m := code.Method(); m != nil {
			return m
		}
	}
	return nil
}
