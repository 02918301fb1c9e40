package narrow

// IsSpectatorCompatible reports whether an anonymous viewer may use the
// narrow at all.
func IsSpectatorCompatible(terms Narrow) bool {
	for _, t := range terms {
		if t.Op == OpIs {
			if s, ok := AsString(t.Operand); ok && s == "resolved" {
				continue
			}
			return false
		}
		switch t.Op {
		case OpChannel, OpChannels, OpTopic, OpSender, OpHas, OpSearch, OpNear, OpID, OpWith:
		default:
			return false
		}
	}
	return true
}

// IsWebPublicNarrow reports whether the narrow asks for the realm's
// web-public channels.
func IsWebPublicNarrow(terms Narrow) bool {
	for _, t := range terms {
		if t.Op != OpChannels || t.Negated {
			continue
		}
		if s, ok := AsString(t.Operand); ok && s == "web-public" {
			return true
		}
	}
	return false
}
