package playerjs

import (
	"time"

	"github.com/dlclark/regexp2"
)

// Building blocks shared by the signature patterns.
const (
	varPart       = `[a-zA-Z_\$][a-zA-Z_0-9\$]*`
	varPartDefine = `"?` + varPart + `"?`
	beforeAccess  = `(?:\["|\.)`
	afterAccess   = `(?:"\]|)`
	varPartAccess = beforeAccess + varPart + afterAccess

	reversePart = `:function\(\w\)\{(?:return )?\w\.reverse\(\)\}`
	slicePart   = `:function\(\w,\w\)\{return \w\.slice\(\w\)\}`
	splicePart  = `:function\(\w,\w\)\{\w\.splice\(0,\w\)\}`
	swapPart    = `:function\(\w,\w\)\{var \w=\w\[0\];\w\[0\]=\w\[\w(?:%\w\.length)?\];\w\[\w(?:%\w\.length)?\]=\w(?:;return \w)?\}`

	quotedString = `(?:"[^"\\]*(?:\\.[^"\\]*)*"|'[^'\\]*(?:\\.[^'\\]*)*')`

	tceActionMember = `[$A-Za-z0-9_]+\s*:\s*function\s*\([^)]*\)\s*\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`
)

const matchTimeout = 5 * time.Second

var (
	decipherFuncPattern = mustPattern(
		`function(?: `+varPart+`)?\(([a-zA-Z])\)\{`+
			`\1=\1\.split\(""\);\s*`+
			`((?:(?:\1=)?`+varPart+varPartAccess+`\(\1,\d+\);)+)`+
			`return \1\.join\(""\)\}`, regexp2.Singleline)

	helperObjectPattern = mustPattern(
		`(?:var|let|const)\s+(`+varPart+`)=\{((?:(?:`+
			varPartDefine+reversePart+`|`+
			varPartDefine+slicePart+`|`+
			varPartDefine+splicePart+`|`+
			varPartDefine+swapPart+
			`),?\n?)+)\};?`, regexp2.Singleline)

	decipherTCEFuncPattern = mustPattern(
		`function(?:\s+[a-zA-Z_\$][a-zA-Z0-9_\$]*)?\(\w\)\{`+
			`\w=\w\.split\((?:""|[a-zA-Z0-9_$]*\[\d+\])\);`+
			`\s*((?:(?:\w=)?[a-zA-Z_\$][a-zA-Z0-9_\$]*(?:\["|\.)[a-zA-Z_\$][a-zA-Z0-9_\$]*(?:"\]|)\(\w,\d+\);)+)`+
			`return \w\.join\((?:""|[a-zA-Z0-9_$]*\[\d+\])\)\}`, regexp2.Singleline)

	nTransformPattern = mustPattern(
		`function\(\s*(\w+)\s*\)\s*\{`+
			`var\s*(\w+)=(?:\1\.split\(.*?\)|String\.prototype\.split\.call\(\1,.*?\)),`+
			`\s*(\w+)=(\[.*?\]);\s*\3\[\d+\]`+
			`(.*?try)(\{.*?\})catch\(\s*(\w+)\s*\)\s*\{`+
			`\s*return"[\w-]+([A-z0-9-]+)"\s*\+\s*\1\s*\}`+
			`\s*return\s*(\2\.join\(""\)|Array\.prototype\.join\.call\(\2,.*?\))\};`, regexp2.Singleline)

	nTransformTCEPattern = mustPattern(
		`function\(\s*(\w+)\s*\)\s*\{`+
			`\s*var\s*(\w+)=\1\.split\(\1\.slice\(0,0\)\),\s*(\w+)=\[.*?\];`+
			`.*?catch\(\s*(\w+)\s*\)\s*\{`+
			`\s*return(?:"[^"]+"|\s*[a-zA-Z_0-9$]*\[\d+\])\s*\+\s*\1\s*\}`+
			`\s*return\s*\2\.join\((?:""|[a-zA-Z_0-9$]*\[\d+\])\)\};`, regexp2.Singleline)

	tceGlobalVarsPattern = mustPattern(
		`(?:^|[;,])\s*(var\s+([\w$]+)\s*=\s*`+
			`(?:`+
			`(["'])(?:\\.|[^\\])*?\3\s*\.\s*split\((["'])(?:\\.|[^\\])*?\4\)`+
			`|`+
			`\[\s*(?:(["'])(?:\\.|[^\\])*?\5\s*,?\s*)+\]`+
			`))(?=\s*[,;])`, regexp2.Multiline)

	globalVarPattern = mustPattern(
		`('use\s*strict';)?`+
			`(?<code>var\s*(?<varname>[a-zA-Z0-9_$]+)\s*=\s*`+
			`(?<value>`+
			quotedString+`\.split\(`+quotedString+`\)`+
			`|`+
			`\[(?:`+quotedString+`\s*,?\s*)*\]`+
			`|`+
			`"[^"]*"\.split\("[^"]*"\)`+
			`))`, regexp2.Multiline)

	tceSignFunctionPattern = mustPattern(
		`function\(\s*([a-zA-Z0-9$])\s*\)\s*\{`+
			`\s*\1\s*=\s*\1\[(\w+)\[\d+\]\]\(\2\[\d+\]\);`+
			`([a-zA-Z0-9$]+)\[\2\[\d+\]\]\(\s*\1\s*,\s*\d+\s*\);`+
			`\s*\3\[\2\[\d+\]\]\(\s*\1\s*,\s*\d+\s*\);`+
			`.*?return\s*\1\[\2\[\d+\]\]\(\2\[\d+\]\)\};`, regexp2.Singleline)

	tceSignActionsPattern = mustPattern(
		`var\s+([$A-Za-z0-9_]+)\s*=\s*\{\s*`+
			tceActionMember+`\s*,\s*`+tceActionMember+`\s*,\s*`+tceActionMember+
			`\s*\};`, regexp2.Singleline)

	tceNFunctionPattern = mustPattern(
		`function\s*\((\w+)\)\s*\{`+
			`var\s*\w+\s*=\s*\1\[\w+\[\d+\]\]\(\w+\[\d+\]\)\s*,\s*\w+\s*=\s*\[.*?\];`+
			`.*?catch\s*\(\s*(\w+)\s*\)\s*\{return\s*\w+\[\d+\]\s*\+\s*\1\}`+
			`\s*return\s*\w+\[\w+\[\d+\]\]\(\w+\[\d+\]\)\}\s*;`, regexp2.Singleline)

	reverseKeyPattern = mustPattern(`(?:^|,)"?(`+varPart+`)"?`+reversePart, regexp2.Multiline)
	sliceKeyPattern   = mustPattern(`(?:^|,)"?(`+varPart+`)"?`+slicePart, regexp2.Multiline)
	spliceKeyPattern  = mustPattern(`(?:^|,)"?(`+varPart+`)"?`+splicePart, regexp2.Multiline)
	swapKeyPattern    = mustPattern(`(?:^|,)"?(`+varPart+`)"?`+swapPart, regexp2.Multiline)
)

func mustPattern(expr string, opts regexp2.RegexOptions) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, opts)
	re.MatchTimeout = matchTimeout
	return re
}

// findMatch returns the first match or nil. Timeouts count as no match.
func findMatch(re *regexp2.Regexp, s string) *regexp2.Match {
	m, err := re.FindStringMatch(s)
	if err != nil {
		return nil
	}
	return m
}

func group(m *regexp2.Match, n int) string {
	if m == nil {
		return ""
	}
	g := m.GroupByNumber(n)
	if g == nil {
		return ""
	}
	return g.String()
}

func namedGroup(m *regexp2.Match, name string) string {
	if m == nil {
		return ""
	}
	g := m.GroupByName(name)
	if g == nil {
		return ""
	}
	return g.String()
}
