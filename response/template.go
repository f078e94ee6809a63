package response

import (
	"strings"
	"sync/atomic"
)

// defaultPlaceholder and defaultParamNameLen mirror control.Config's
// TemplatePlaceholder and TemplateParamNameLen defaults (spec.md §6);
// server wires the live config into these via SetTemplateDefaults so
// every response built afterwards picks up the configured values
// without threading a config reference through every constructor.
var (
	defaultPlaceholder   atomic.Int32
	defaultParamNameLen  atomic.Int32
)

func init() {
	defaultPlaceholder.Store('%')
	defaultParamNameLen.Store(32)
}

// SetTemplateDefaults updates the package-wide placeholder byte and
// maximum parameter-name length used by Response.WithTemplate when
// constructed without per-instance overrides.
func SetTemplateDefaults(placeholder byte, maxParamNameLen int) {
	defaultPlaceholder.Store(int32(placeholder))
	defaultParamNameLen.Store(int32(maxParamNameLen))
}

// Processor supplies the replacement text for one %NAME% placeholder
// found in a template body. Returning "" for an unrecognized name
// drops the placeholder from the output (matches the original
// template processor's behavior of substituting an empty string).
type Processor func(name string) string

// expandTemplate scans body for `placeholder NAME placeholder` runs and
// replaces each with proc(NAME). A name longer than maxNameLen, or a
// placeholder with no matching close before maxNameLen bytes, is passed
// through literally rather than treated as a placeholder.
func expandTemplate(body []byte, placeholder byte, maxNameLen int, proc Processor) []byte {
	if proc == nil || len(body) == 0 {
		return body
	}
	var out strings.Builder
	out.Grow(len(body))
	i := 0
	for i < len(body) {
		if body[i] != placeholder {
			out.WriteByte(body[i])
			i++
			continue
		}
		end := -1
		for j := i + 1; j < len(body) && j-i-1 <= maxNameLen; j++ {
			if body[j] == placeholder {
				end = j
				break
			}
		}
		if end < 0 {
			out.WriteByte(body[i])
			i++
			continue
		}
		name := string(body[i+1 : end])
		out.WriteString(proc(name))
		i = end + 1
	}
	return []byte(out.String())
}
