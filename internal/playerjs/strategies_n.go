package playerjs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	re "github.com/umisama/go-regexpcache"

	"github.com/famomatic/ytcipher/internal/sandbox"
)

// extractTCEN handles n functions that index the global string table.
func extractTCEN(b *Body) (*Snippet, error) {
	g := b.Global()
	if g == nil {
		return nil, errNoGlobalVar
	}
	m := findMatch(tceNFunctionPattern, b.Text)
	if m == nil {
		return nil, ErrPatternNotFound
	}
	fn := stripTypeofShortCircuit(m.String(), g.Name)
	return &Snippet{Code: callSnippet(sandbox.KindN, g.Code+";", fn)}, nil
}

// stripTypeofShortCircuit removes `;if(typeof X===K[n])return a;` guards that
// make the function return its input unchanged outside the real page.
func stripTypeofShortCircuit(fn, globalName string) string {
	guard, err := regexp2.Compile(
		`;\s*if\s*\(\s*typeof\s+[a-zA-Z0-9_$]+\s*===?\s*(?:"undefined"|'undefined'|`+regexp2.Escape(globalName)+`\[\d+\])\s*\)\s*return\s+\w+;`,
		regexp2.None)
	if err != nil {
		return fn
	}
	guard.MatchTimeout = matchTimeout
	out, err := guard.Replace(fn, ";", -1, -1)
	if err != nil {
		return fn
	}
	return out
}

var nParamPattern = regexp.MustCompile(`function\s*\(\s*(\w+)\s*\)`)

// stripTypeofReturn removes `if(typeof X===...)return a;` for the function's
// own parameter a.
func stripTypeofReturn(fn string) string {
	pm := nParamPattern.FindStringSubmatch(fn)
	if len(pm) < 2 {
		return fn
	}
	guard, err := re.Compile(`if\s*\(typeof\s*[^\s()]+\s*===?.*?\)return ` + regexp.QuoteMeta(pm[1]) + `\s*;?`)
	if err != nil {
		return fn
	}
	return guard.ReplaceAllString(fn, "")
}

// extractNFunction handles the classic n function: split, a scratch array,
// a try/catch returning an "enhanced_except" marker, and a join.
func extractNFunction(b *Body) (*Snippet, error) {
	if m := findMatch(nTransformPattern, b.Text); m != nil {
		return &Snippet{Code: callSnippet(sandbox.KindN, "", stripTypeofReturn(m.String()))}, nil
	}
	m := findMatch(nTransformTCEPattern, b.Text)
	if m == nil {
		return nil, ErrPatternNotFound
	}
	prelude := ""
	if vars := findMatch(tceGlobalVarsPattern, b.Text); vars != nil {
		prelude = group(vars, 1) + ";"
	}
	return &Snippet{Code: callSnippet(sandbox.KindN, prelude, stripTypeofReturn(m.String()))}, nil
}

var nCallerPatterns = []*regexp.Regexp{
	// b=XY[0](b)||ZZ with an array holding the function.
	regexp.MustCompile(`\.get\("n"\)\)\s*&&\s*\(b=([a-zA-Z0-9$]+)(?:\[(\d+)\])?\([a-zA-Z0-9$]+\)`),
	regexp.MustCompile(`\.get\("n"\)\)&&\(b=([a-zA-Z0-9$]{0,3})\[(\d+)\](.+)\|\|([a-zA-Z0-9]{0,3})`),
	regexp.MustCompile(`\.get\("n"\).*?&&.*?([a-zA-Z0-9$]{2,})(?:\[(\d+)\])?\([a-zA-Z0-9$]{1,}\)`),
}

// base64AlphabetPattern recognizes how n functions build the base64url
// alphabet: as a literal, or with a fromCharCode loop over code points.
var base64AlphabetPattern = regexp.MustCompile(
	`ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_|case\s*58\s*:\s*\w+\s*-=\s*14|\+\+\w+-\w+\.length-32`)

var funcAssignPattern = regexp.MustCompile(`(?:^|[;,\n{}])\s*(?:var\s+)?([a-zA-Z0-9_$]{2,})\s*=\s*function\s*\(\s*\w+\s*\)\s*\{`)

// extractNByCaller resolves the n function through its call site in the URL
// rewriting code. When the call site is ambiguous the candidate containing
// the base64url alphabet construction wins.
func extractNByCaller(b *Body) (*Snippet, error) {
	var def FuncDef
	found := false
	for _, p := range nCallerPatterns {
		m := p.FindStringSubmatch(b.Text)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		name := m[1]
		if len(m) > 2 && m[2] != "" {
			idx, _ := strconv.Atoi(m[2])
			if resolved, ok := resolveArrayElement(b.Text, name, idx); ok {
				name = resolved
			}
		}
		if d, ok := FindFunction(b.Text, name); ok && looksLikeNFunction(d.Expr) {
			def, found = d, true
			break
		}
	}
	if !found {
		def, found = findNFunctionByAlphabet(b.Text)
	}
	if !found {
		return nil, ErrPatternNotFound
	}

	fn := stripTypeofReturn(def.Expr)
	prelude := ""
	if g := b.Global(); g != nil && strings.Contains(fn, g.Name+"[") {
		fn = stripTypeofShortCircuit(fn, g.Name)
		prelude = g.Code + ";"
	}
	return &Snippet{Code: callSnippet(sandbox.KindN, prelude, fn)}, nil
}

func looksLikeNFunction(expr string) bool {
	if base64AlphabetPattern.MatchString(expr) {
		return true
	}
	return strings.Contains(expr, "catch(") && strings.Contains(expr, "split(")
}

func resolveArrayElement(body, name string, idx int) (string, bool) {
	arrRe, err := re.Compile(`(?:var\s+|[;,\n])` + regexp.QuoteMeta(name) + `\s*=\s*\[([^\]]+)\]`)
	if err != nil {
		return "", false
	}
	m := arrRe.FindStringSubmatch(body)
	if len(m) < 2 {
		return "", false
	}
	elems := strings.Split(m[1], ",")
	if idx < 0 || idx >= len(elems) {
		return "", false
	}
	return strings.TrimSpace(elems[idx]), true
}

// findNFunctionByAlphabet looks for the nearest function definitions that
// enclose a base64url alphabet construction.
func findNFunctionByAlphabet(body string) (FuncDef, bool) {
	markers := base64AlphabetPattern.FindAllStringIndex(body, 8)
	if len(markers) == 0 {
		return FuncDef{}, false
	}
	defs := funcAssignPattern.FindAllStringSubmatchIndex(body, -1)
	for _, marker := range markers {
		tried := 0
		for i := len(defs) - 1; i >= 0 && tried < 5; i-- {
			nameStart, nameEnd := defs[i][2], defs[i][3]
			if nameStart >= marker[0] {
				continue
			}
			tried++
			end, ok := scanBalanced(body, nameStart)
			if !ok || end < marker[1] {
				continue
			}
			text := body[nameStart:end]
			eq := strings.IndexByte(text, '=')
			expr := strings.TrimSpace(text[eq+1:])
			if !strings.Contains(expr, "catch(") && !strings.Contains(expr, "split(") {
				continue
			}
			return FuncDef{Name: body[nameStart:nameEnd], Text: text, Expr: expr}, true
		}
	}
	return FuncDef{}, false
}
