package playerjs

import (
	"regexp"
	"strings"

	re "github.com/umisama/go-regexpcache"
)

const maxFunctionScan = 50000

// FuncDef is a function located in a player script.
type FuncDef struct {
	Name string
	// Text is the definition starting at the name, e.g. `Xy=function(a){...}`.
	Text string
	// Expr is the function expression without the `Name=` prefix.
	Expr string
}

// FindFunction locates `name=function(...){...}` (optionally `var`-prefixed)
// or `function name(...){...}` and returns its balanced text.
func FindFunction(body, name string) (FuncDef, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return FuncDef{}, false
	}
	quoted := regexp.QuoteMeta(name)
	if defRe, err := re.Compile(`(?:^|[;\n,{}])\s*(?:var\s+|let\s+|const\s+)?` + quoted + `\s*=\s*function\b`); err == nil {
		if loc := defRe.FindStringIndex(body); loc != nil {
			start := loc[0] + strings.Index(body[loc[0]:loc[1]], name)
			if end, ok := scanBalanced(body, start); ok {
				text := body[start:end]
				eq := strings.IndexByte(text, '=')
				return FuncDef{Name: name, Text: text, Expr: strings.TrimSpace(text[eq+1:])}, true
			}
		}
	}
	if declRe, err := re.Compile(`(?:^|[^a-zA-Z0-9_$.])function\s+` + quoted + `\s*\(`); err == nil {
		if loc := declRe.FindStringIndex(body); loc != nil {
			start := loc[0] + strings.Index(body[loc[0]:loc[1]], "function")
			if end, ok := scanBalanced(body, start); ok {
				expr := body[start:end]
				return FuncDef{Name: name, Text: name + "=" + expr, Expr: expr}, true
			}
		}
	}
	return FuncDef{}, false
}

// FindObject locates an object literal assigned to name and returns it as a
// `var name={...};` statement.
func FindObject(body, name string) (string, bool) {
	objRe, err := re.Compile(`(?:^|[;\n,{}\s])(?:var\s+|let\s+|const\s+)?` + regexp.QuoteMeta(name) + `\s*=\s*\{`)
	if err != nil {
		return "", false
	}
	loc := objRe.FindStringIndex(body)
	if loc == nil {
		return "", false
	}
	open := loc[1] - 1
	end, ok := scanBalanced(body, open)
	if !ok {
		return "", false
	}
	return "var " + name + "=" + body[open:end] + ";", true
}

// FindKArray returns the `var K="...".split(...)` lookup table definition.
func FindKArray(body string) (string, bool) {
	return findSplitArray(body, "K")
}

func findSplitArray(body, name string) (string, bool) {
	prefix := "var " + name + "="
	start := strings.Index(body, prefix)
	if start < 0 {
		return "", false
	}
	limit := min(len(body), start+10000)
	inStr := false
	var strCh byte
	depth := 0
	foundSplit := false
	for i := start + len(prefix); i < limit; i++ {
		c := body[i]
		if inStr {
			if c == '\\' {
				i++
				continue
			}
			if c == strCh {
				inStr = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inStr = true
			strCh = c
		case '(':
			depth++
		case ')':
			depth--
			if foundSplit && depth == 0 {
				return body[start : i+1], true
			}
		case '.':
			if strings.HasPrefix(body[i+1:], "split") {
				foundSplit = true
			}
		}
	}
	return "", false
}

// scanBalanced walks from start to the brace closing the first opened one,
// skipping string, template, regex literals and comments.
func scanBalanced(body string, start int) (int, bool) {
	limit := min(len(body), start+maxFunctionScan)
	depth := 0
	started := false
	for i := start; i < limit; {
		c := body[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			i = skipString(body, i)
			continue
		case c == '/' && i+1 < len(body) && body[i+1] == '/':
			for i < len(body) && body[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(body) && body[i+1] == '*':
			end := strings.Index(body[i+2:], "*/")
			if end < 0 {
				return 0, false
			}
			i += end + 4
			continue
		case c == '/' && regexAllowed(body, i):
			i = skipRegex(body, i)
			continue
		case c == '{':
			depth++
			started = true
		case c == '}':
			depth--
			if started && depth == 0 {
				return i + 1, true
			}
		}
		i++
	}
	return 0, false
}

func skipString(body string, i int) int {
	q := body[i]
	i++
	for i < len(body) {
		switch body[i] {
		case '\\':
			i += 2
			continue
		case q:
			return i + 1
		}
		i++
	}
	return len(body)
}

const regexPrecedingChars = ",=([!&|;:{+-*/%^~?"

// regexAllowed reports whether a slash at i starts a regex literal rather
// than a division.
func regexAllowed(body string, i int) bool {
	prev := strings.TrimRight(body[max(0, i-6):i], " \t\r\n")
	if prev == "" {
		return false
	}
	if strings.HasSuffix(prev, "return") {
		return true
	}
	return strings.IndexByte(regexPrecedingChars, prev[len(prev)-1]) >= 0
}

func skipRegex(body string, i int) int {
	i++
	inClass := false
	for i < len(body) {
		switch body[i] {
		case '\\':
			i += 2
			continue
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '/':
			if !inClass {
				return i + 1
			}
		case '\n':
			return i
		}
		i++
	}
	return len(body)
}
