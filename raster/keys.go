package raster

// bracketStep is how far one bracket keypress moves the brush radius or, in
// magic mode, the fill tolerance.
const bracketStep = 4

// HandleKey dispatches a keyboard shortcut while pixel editing is active:
// single letters switch modes, brackets adjust radius (or tolerance in magic
// mode), and the platform modifier plus z/Z drives the buffer's own undo and
// redo. All shortcuts are suppressed while focus is inside a text input.
// Returns true when the key was consumed.
func (b *Buffer) HandleKey(key string, modifier, shift, inTextInput bool) bool {
	if inTextInput {
		return false
	}

	if modifier {
		switch key {
		case "z":
			if shift {
				b.Redo()
			} else {
				b.Undo()
			}
			return true
		}
		return false
	}

	switch key {
	case "e":
		b.SetMode(ModeErase)
	case "r":
		b.SetMode(ModeRestore)
	case "m":
		b.SetMode(ModeMagic)
	case "[":
		if b.mode == ModeMagic {
			b.SetTolerance(b.tolerance - bracketStep)
		} else {
			b.SetRadius(b.radius - bracketStep)
		}
	case "]":
		if b.mode == ModeMagic {
			b.SetTolerance(b.tolerance + bracketStep)
		} else {
			b.SetRadius(b.radius + bracketStep)
		}
	default:
		return false
	}
	return true
}
