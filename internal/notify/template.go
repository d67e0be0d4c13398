package notify

import (
	"strconv"
	"strings"
)

// Expand fills a URL template with positional arguments.
//
// "{}" takes the next argument in order; "{0}", "{1}"... address one
// explicitly. Placeholders with no matching argument are left in place and
// counted in the second return value.
func Expand(tpl string, args ...string) (string, int) {
	var (
		b       strings.Builder
		next    int
		missing int
	)
	b.Grow(len(tpl))

	for i := 0; i < len(tpl); {
		if tpl[i] != '{' {
			b.WriteByte(tpl[i])
			i++
			continue
		}
		end := strings.IndexByte(tpl[i:], '}')
		if end < 0 {
			b.WriteString(tpl[i:])
			break
		}
		inner := tpl[i+1 : i+end]
		placeholder := tpl[i : i+end+1]

		idx := -1
		switch {
		case inner == "":
			idx = next
			next++
		case isDigits(inner):
			idx, _ = strconv.Atoi(inner)
		default:
			// Not a placeholder; copy the brace and move on.
			b.WriteByte('{')
			i++
			continue
		}

		if idx < len(args) {
			b.WriteString(args[idx])
		} else {
			b.WriteString(placeholder)
			missing++
		}
		i += end + 1
	}
	return b.String(), missing
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
