package sqlextract

import "strings"

// normalize removes comments outside quoted text and collapses every whitespace run
// outside quoted text to one space. Leading and trailing whitespace is dropped.
func normalize(s string) string {
	var (
		b       strings.Builder
		quote   byte
		pending bool
	)
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]

		if quote != 0 {
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}

		switch {
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			if j := strings.IndexByte(s[i:], '\n'); j < 0 {
				i = len(s)
			} else {
				i += j - 1
			}
			pending = true
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			if j := strings.Index(s[i+2:], "*/"); j < 0 {
				i = len(s)
			} else {
				i += j + 3
			}
			pending = true
		case isSpace(c):
			pending = true
		default:
			if pending && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pending = false
			if c == '\'' || c == '"' || c == '`' {
				quote = c
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

// splitStatements splits on semicolons outside quoted text and drops empty statements.
func splitStatements(s string) []string {
	var (
		stmts []string
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == ';':
			if stmt := strings.TrimSpace(s[start:i]); stmt != "" {
				stmts = append(stmts, stmt)
			}
			start = i + 1
		}
	}
	if stmt := strings.TrimSpace(s[start:]); stmt != "" {
		stmts = append(stmts, stmt)
	}
	return stmts
}

// backtickIdentifiers rewrites double quoted identifiers to backticks so the MySQL
// grammar of the parser reads them as identifiers, as SQLite does.
func backtickIdentifiers(s string) string {
	out := []byte(s)
	var quote byte
	for i, c := range out {
		switch {
		case quote == '\'':
			if c == '\'' {
				quote = 0
			}
		case quote == '"':
			if c == '"' {
				out[i] = '`'
				quote = 0
			}
		case quote == '`':
			if c == '`' {
				quote = 0
			}
		case c == '\'' || c == '`':
			quote = c
		case c == '"':
			out[i] = '`'
			quote = c
		}
	}
	return string(out)
}

// closesOnlyOpened reports whether every closing parenthesis outside quoted text has
// an opening one before it. A statement cut out of a subquery fails this.
func closesOnlyOpened(s string) bool {
	var (
		quote byte
		depth int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// hasSelectPrefix reports whether s starts with the SELECT keyword, ignoring case.
func hasSelectPrefix(s string) bool {
	const kw = "SELECT"
	if len(s) < len(kw) || !strings.EqualFold(s[:len(kw)], kw) {
		return false
	}
	return len(s) == len(kw) || !isWordByte(s[len(kw)])
}
