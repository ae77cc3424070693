package recovery

import (
	"bytes"
	"encoding/json"

	"github.com/elacour/granary/internal/core/domain"
)

// maxRepairDepth bounds how many missing closers structural repair will
// append. Anything worse goes to partial salvage instead; aggressive
// whole-document rewriting trades one corruption for a quieter one.
const maxRepairDepth = 4

// Salvage scans raw bytes for recognizable top-level section markers
// and parses each recognized section in isolation, merging successes
// onto a copy of base. Sections that fail to parse are omitted. Returns
// the merged snapshot and how many sections were recovered.
//
// The result is best-effort by construction; callers tag it recovered
// so nothing downstream mistakes it for a clean load.
func Salvage(raw []byte, base *domain.Snapshot) (*domain.Snapshot, int) {
	merged := base.Clone()
	recovered := 0

	for _, name := range domain.SectionNames {
		section, ok := extractSection(raw, name)
		if !ok {
			continue
		}
		if applySection(merged, name, section) {
			recovered++
		}
	}
	return merged, recovered
}

// applySection parses one section's bytes into the matching snapshot
// field. Returns false when the section does not parse on its own.
func applySection(s *domain.Snapshot, name string, section []byte) bool {
	switch name {
	case "gameTime":
		var v domain.GameTime
		if json.Unmarshal(section, &v) != nil {
			return false
		}
		s.GameTime = v
	case "player":
		var v domain.Player
		if json.Unmarshal(section, &v) != nil {
			return false
		}
		s.Player = v
	case "inventory":
		var v domain.Inventory
		if json.Unmarshal(section, &v) != nil {
			return false
		}
		s.Inventory = v
	case "worldSubsystems":
		var v map[string]json.RawMessage
		if json.Unmarshal(section, &v) != nil {
			return false
		}
		s.WorldSubsystems = v
	case "settings":
		var v domain.Settings
		if json.Unmarshal(section, &v) != nil {
			return false
		}
		s.Settings = v
	case "metadata":
		var v domain.Metadata
		if json.Unmarshal(section, &v) != nil {
			return false
		}
		s.Metadata = v
	default:
		return false
	}
	return true
}

// extractSection locates `"name":` in raw and returns the balanced JSON
// object value that follows. Only object-valued sections are extracted;
// every Snapshot section is one.
func extractSection(raw []byte, name string) ([]byte, bool) {
	marker := []byte(`"` + name + `"`)
	idx := bytes.Index(raw, marker)
	if idx < 0 {
		return nil, false
	}

	pos := idx + len(marker)
	pos = skipSpace(raw, pos)
	if pos >= len(raw) || raw[pos] != ':' {
		return nil, false
	}
	pos = skipSpace(raw, pos+1)
	if pos >= len(raw) || raw[pos] != '{' {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := pos; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[pos : i+1], true
			}
		}
	}
	return nil, false
}

func skipSpace(raw []byte, pos int) int {
	for pos < len(raw) {
		switch raw[pos] {
		case ' ', '\t', '\n', '\r':
			pos++
		default:
			return pos
		}
	}
	return pos
}

// Repair applies narrow structural fixes to malformed JSON: trailing
// commas before closers are dropped and up to maxRepairDepth missing
// closing braces/brackets are appended. Returns nil when the document
// is outside that scope.
func Repair(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	unclosed, inString, ok := scanBalance(trimmed)
	if !ok || inString || unclosed > maxRepairDepth {
		return nil
	}

	out := dropTrailingCommas(trimmed)

	// Re-scan after comma removal; closers come from the original stack.
	stack := closerStack(out)
	if len(stack) > maxRepairDepth {
		return nil
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out = append(out, stack[i])
	}
	return out
}

// scanBalance walks the document tracking nesting. ok is false when a
// closer never had an opener, which repair cannot fix.
func scanBalance(raw []byte) (unclosed int, inString bool, ok bool) {
	depth := 0
	escaped := false
	for _, c := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth < 0 {
				return 0, false, false
			}
		}
	}
	return depth, inString, true
}

// closerStack returns the closing characters needed to balance raw, in
// opening order.
func closerStack(raw []byte) []byte {
	var stack []byte
	inString := false
	escaped := false
	for _, c := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return stack
}

// dropTrailingCommas removes commas whose next non-whitespace character
// is a closer.
func dropTrailingCommas(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		if c == ',' {
			next := skipSpace(raw, i+1)
			// A comma before a closer, or dangling at a truncated end,
			// would break the parse once closers are appended.
			if next >= len(raw) || raw[next] == '}' || raw[next] == ']' {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}
