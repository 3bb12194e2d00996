package pattern

import "strings"

// GoLayout converts a Pact/Java style date pattern such as
// "yyyy-MM-dd'T'HH:mm:ss.SSSXXX" into a Go reference layout. Formats that
// already contain the Go reference year are returned unchanged.
func GoLayout(format string) string {
	if strings.Contains(format, "2006") {
		return format
	}

	var b strings.Builder
	runes := []rune(format)
	for i := 0; i < len(runes); {
		c := runes[i]
		if c == '\'' {
			// quoted literal, '' is an escaped quote
			j := i + 1
			if j < len(runes) && runes[j] == '\'' {
				b.WriteRune('\'')
				i += 2
				continue
			}
			for j < len(runes) && runes[j] != '\'' {
				b.WriteRune(runes[j])
				j++
			}
			i = j + 1
			continue
		}
		if !isPatternLetter(c) {
			b.WriteRune(c)
			i++
			continue
		}
		n := 1
		for i+n < len(runes) && runes[i+n] == c {
			n++
		}
		b.WriteString(layoutFor(c, n))
		i += n
	}
	return b.String()
}

func isPatternLetter(c rune) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func layoutFor(c rune, n int) string {
	switch c {
	case 'y', 'u':
		if n == 2 {
			return "06"
		}
		return "2006"
	case 'M', 'L':
		switch n {
		case 1:
			return "1"
		case 2:
			return "01"
		case 3:
			return "Jan"
		}
		return "January"
	case 'd':
		if n == 1 {
			return "2"
		}
		return "02"
	case 'D':
		return "002"
	case 'H', 'k':
		return "15"
	case 'h', 'K':
		if n == 1 {
			return "3"
		}
		return "03"
	case 'm':
		if n == 1 {
			return "4"
		}
		return "04"
	case 's':
		if n == 1 {
			return "5"
		}
		return "05"
	case 'S':
		return strings.Repeat("0", n)
	case 'a':
		return "PM"
	case 'E':
		if n >= 4 {
			return "Monday"
		}
		return "Mon"
	case 'z':
		return "MST"
	case 'Z':
		return "-0700"
	case 'X':
		switch n {
		case 1:
			return "Z07"
		case 2:
			return "Z0700"
		}
		return "Z07:00"
	case 'x':
		switch n {
		case 1:
			return "-07"
		case 2:
			return "-0700"
		}
		return "-07:00"
	}
	return strings.Repeat(string(c), n)
}
