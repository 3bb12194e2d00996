package pattern

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type token struct {
	key      string
	index    int
	isIndex  bool
	wildcard bool
}

// Path locates a value inside a document, rendered in the JSON path dialect
// used by Pact matching rules: $, $.name, $['odd key'], $[0], $[*], $.*.
type Path []token

// Root is the path of the document itself.
var Root = Path{}

func (p Path) with(t token) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, t)
}

// Field descends into an object member.
func (p Path) Field(key string) Path { return p.with(token{key: key}) }

// Index descends into an array element.
func (p Path) Index(i int) Path { return p.with(token{index: i, isIndex: true}) }

// Any descends into every element of an array.
func (p Path) Any() Path { return p.with(token{isIndex: true, wildcard: true}) }

func (p Path) String() string {
	var b strings.Builder
	b.WriteString("$")
	for _, t := range p {
		switch {
		case t.isIndex && t.wildcard:
			b.WriteString("[*]")
		case t.isIndex:
			b.WriteString("[")
			b.WriteString(strconv.Itoa(t.index))
			b.WriteString("]")
		case t.wildcard:
			b.WriteString(".*")
		case identLen(t.key) == len(t.key) && t.key != "":
			b.WriteString(".")
			b.WriteString(t.key)
		default:
			b.WriteString("['")
			b.WriteString(keyEscaper.Replace(t.key))
			b.WriteString("']")
		}
	}
	return b.String()
}

// keyEscaper escapes a quoted key the way quotedKey reads it back.
var keyEscaper = strings.NewReplacer(`\`, `\\`, "'", `\'`)

// ParsePath parses the rendering produced by Path.String.
func ParsePath(s string) (Path, error) {
	if !strings.HasPrefix(s, "$") {
		return nil, errors.Wrapf(ErrInvalidPattern, "path %q does not start with $", s)
	}
	p := Path{}
	rest := s[1:]
	for len(rest) > 0 {
		switch {
		case strings.HasPrefix(rest, ".*"):
			p = append(p, token{wildcard: true})
			rest = rest[2:]
		case rest[0] == '.':
			n := identLen(rest[1:])
			if n == 0 {
				return nil, errors.Wrapf(ErrInvalidPattern, "path %q has an empty member name", s)
			}
			p = append(p, token{key: rest[1 : 1+n]})
			rest = rest[1+n:]
		case strings.HasPrefix(rest, "[*]"):
			p = append(p, token{isIndex: true, wildcard: true})
			rest = rest[3:]
		case strings.HasPrefix(rest, "['"):
			key, n, ok := quotedKey(rest[2:])
			if !ok {
				return nil, errors.Wrapf(ErrInvalidPattern, "path %q has an unterminated member name", s)
			}
			p = append(p, token{key: key})
			rest = rest[2+n:]
		case rest[0] == '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, errors.Wrapf(ErrInvalidPattern, "path %q has an unterminated index", s)
			}
			i, err := strconv.Atoi(rest[1:end])
			if err != nil || i < 0 {
				return nil, errors.Wrapf(ErrInvalidPattern, "path %q has an invalid index", s)
			}
			p = append(p, token{index: i, isIndex: true})
			rest = rest[end+1:]
		default:
			return nil, errors.Wrapf(ErrInvalidPattern, "path %q is malformed at %q", s, rest)
		}
	}
	return p, nil
}

// weight reports whether the rule path p applies to the concrete path
// actual. Exact segments weigh more than wildcards so the most specific rule
// wins.
func (p Path) weight(actual Path) (int, bool) {
	if len(p) != len(actual) {
		return 0, false
	}
	w := 0
	for i, t := range p {
		a := actual[i]
		if t.isIndex != a.isIndex {
			return 0, false
		}
		switch {
		case t.wildcard:
			w++
		case a.wildcard:
			return 0, false
		case t.isIndex && t.index == a.index:
			w += 2
		case !t.isIndex && t.key == a.key:
			w += 2
		default:
			return 0, false
		}
	}
	return w, true
}

func identLen(s string) int {
	for i, c := range s {
		switch {
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		case i > 0 && (c == '-' || c >= '0' && c <= '9'):
		default:
			return i
		}
	}
	return len(s)
}

func quotedKey(s string) (string, int, bool) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			}
		case '\'':
			if i+1 < len(s) && s[i+1] == ']' {
				return b.String(), i + 2, true
			}
			return "", 0, false
		default:
			b.WriteByte(s[i])
		}
	}
	return "", 0, false
}
