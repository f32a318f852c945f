package playerjs

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	re "github.com/umisama/go-regexpcache"

	"github.com/famomatic/ytcipher/internal/sandbox"
)

var errNoGlobalVar = errors.New("no global lookup table")

// extractTCESignature handles scripts where the decipher function indexes a
// global string table: a=a[K[1]](K[2]);H[K[3]](a,7);...return a[K[4]](K[2]).
func extractTCESignature(b *Body) (*Snippet, error) {
	g := b.Global()
	if g == nil {
		return nil, errNoGlobalVar
	}
	fn := findMatch(tceSignFunctionPattern, b.Text)
	if fn == nil {
		return nil, ErrPatternNotFound
	}
	actions, ok := FindObject(b.Text, group(fn, 3))
	if !ok {
		m := findMatch(tceSignActionsPattern, b.Text)
		if m == nil {
			return nil, ErrPatternNotFound
		}
		actions = m.String()
	}
	return &Snippet{
		Code: callSnippet(sandbox.KindSignature, g.Code+";\n"+actions, fn.String()),
	}, nil
}

type helperKeys struct {
	reverse, slice, splice, swap string
}

func (k helperKeys) empty() bool {
	return k.reverse == "" && k.slice == "" && k.splice == "" && k.swap == ""
}

// extractHelperObject handles the classic shape: a helper object with
// reverse/slice/splice/swap members and a function calling them in sequence.
func extractHelperObject(b *Body) (*Snippet, error) {
	h := findMatch(helperObjectPattern, b.Text)
	if h == nil {
		return nil, ErrPatternNotFound
	}
	helperName := group(h, 1)
	actionBody := group(h, 2)
	keys := helperKeys{
		reverse: group(findMatch(reverseKeyPattern, actionBody), 1),
		slice:   group(findMatch(sliceKeyPattern, actionBody), 1),
		splice:  group(findMatch(spliceKeyPattern, actionBody), 1),
		swap:    group(findMatch(swapKeyPattern, actionBody), 1),
	}
	if keys.empty() {
		return nil, ErrPatternNotFound
	}

	helper := strings.TrimSpace(h.String())
	if !strings.HasSuffix(helper, ";") {
		helper += ";"
	}
	if fn := findMatch(decipherFuncPattern, b.Text); fn != nil {
		return &Snippet{
			Code: callSnippet(sandbox.KindSignature, helper, fn.String()),
			Ops:  parseHelperOps(fn.String(), helperName, keys),
		}, nil
	}

	fn := findMatch(decipherTCEFuncPattern, b.Text)
	if fn == nil {
		return nil, ErrPatternNotFound
	}
	prelude := helper
	if vars := findMatch(tceGlobalVarsPattern, b.Text); vars != nil {
		prelude = group(vars, 1) + ";\n" + helper
	}
	return &Snippet{Code: callSnippet(sandbox.KindSignature, prelude, fn.String())}, nil
}

var decipherParamPattern = regexp.MustCompile(`^function(?:\s+[a-zA-Z_$][a-zA-Z_0-9$]*)?\((\w)\)`)

// parseHelperOps reduces fn to an op list. It returns nil when any helper
// call cannot be mapped.
func parseHelperOps(fn, helperName string, keys helperKeys) []sandbox.Op {
	pm := decipherParamPattern.FindStringSubmatch(fn)
	if len(pm) < 2 {
		return nil
	}
	param := regexp.QuoteMeta(pm[1])
	quotedHelper := regexp.QuoteMeta(helperName)
	callRe, err := re.Compile(`(` + param + `=)?` + quotedHelper +
		`(?:\.([a-zA-Z_$][a-zA-Z_0-9$]*)|\["([a-zA-Z_$][a-zA-Z_0-9$]*)"\])\(` + param + `,(\d+)\)`)
	if err != nil {
		return nil
	}
	calls := callRe.FindAllStringSubmatch(fn, -1)
	if len(calls) == 0 || len(calls) != strings.Count(fn, helperName+".")+strings.Count(fn, helperName+"[") {
		return nil
	}

	ops := make([]sandbox.Op, 0, len(calls))
	for _, c := range calls {
		assigned := c[1] != ""
		key := c[2]
		if key == "" {
			key = c[3]
		}
		arg, err := strconv.Atoi(c[4])
		if err != nil {
			return nil
		}
		switch key {
		case keys.reverse:
			ops = append(ops, sandbox.Op{Code: sandbox.OpReverse})
		case keys.splice:
			ops = append(ops, sandbox.Op{Code: sandbox.OpSplice, Arg: arg})
		case keys.slice:
			// slice returns a copy; without assignment the call is a no-op.
			if assigned {
				ops = append(ops, sandbox.Op{Code: sandbox.OpSlice, Arg: arg})
			}
		case keys.swap:
			ops = append(ops, sandbox.Op{Code: sandbox.OpSwap, Arg: arg})
		default:
			return nil
		}
	}
	if len(ops) == 0 {
		return nil
	}
	return ops
}

var signatureCallerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[cs]\s*&&\s*[adf]\.set\([^,]+\s*,\s*encodeURIComponent\s*\(\s*([a-zA-Z0-9$]+)\(`),
	regexp.MustCompile(`\b[a-zA-Z0-9]+\s*&&\s*[a-zA-Z0-9]+\.set\([^,]+\s*,\s*encodeURIComponent\s*\(\s*([a-zA-Z0-9$]+)\(`),
	regexp.MustCompile(`\bm=([a-zA-Z0-9$]{2,})\(decodeURIComponent\(h\.s\)\)`),
	regexp.MustCompile(`[a-zA-Z0-9$]+&&\([a-zA-Z0-9$]+=([a-zA-Z0-9$]{2,})\(decodeURIComponent\([a-zA-Z0-9$]+\)\)`),
	regexp.MustCompile(`\.sig\|\|([a-zA-Z0-9$]+)\(`),
	regexp.MustCompile(`(?:^|[^a-zA-Z0-9$])([a-zA-Z0-9$]{2,})\s*=\s*function\(\s*a\s*\)\s*\{\s*a\s*=\s*a\.split\(\s*""\s*\)`),
}

// leadingArgCallerPattern matches callers passing a selector before the
// signature, e.g. Xy(16,decodeURIComponent(h.s)).
var leadingArgCallerPattern = regexp.MustCompile(`([a-zA-Z0-9$]+)\((\d+),decodeURIComponent\(`)

var helperReferencePattern = regexp.MustCompile(`[;{]\s*(?:\w+\s*=\s*)?([a-zA-Z0-9$_]{2,})(?:\.[a-zA-Z0-9$_]+|\[[^\]]+\])\(`)

// extractSignatureByCaller finds the decipher function through the
// expression that calls it, then extracts it and its helper object.
func extractSignatureByCaller(b *Body) (*Snippet, error) {
	name, leading := "", ""
	for _, p := range signatureCallerPatterns {
		if m := p.FindStringSubmatch(b.Text); len(m) > 1 {
			name = m[1]
			break
		}
	}
	if name == "" {
		if m := leadingArgCallerPattern.FindStringSubmatch(b.Text); len(m) > 2 {
			name, leading = m[1], m[2]
		}
	}
	if name == "" {
		return nil, ErrPatternNotFound
	}
	def, ok := FindFunction(b.Text, name)
	if !ok {
		return nil, ErrPatternNotFound
	}

	prelude := ""
	for _, m := range helperReferencePattern.FindAllStringSubmatch(def.Expr, -1) {
		ref := m[1]
		if ref == "String" || ref == "Array" || ref == "Math" {
			continue
		}
		if obj, ok := FindObject(b.Text, ref); ok {
			prelude = obj
			break
		}
	}
	if g := b.Global(); g != nil && strings.Contains(def.Expr+prelude, g.Name+"[") {
		prelude = g.Code + ";\n" + prelude
	}

	var leadingArgs []string
	if leading != "" {
		leadingArgs = append(leadingArgs, leading)
	}
	return &Snippet{Code: callSnippet(sandbox.KindSignature, prelude, def.Expr, leadingArgs...)}, nil
}
