package playerjs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	re "github.com/umisama/go-regexpcache"

	"github.com/famomatic/ytcipher/internal/sandbox"
)

// Newer scripts route transforms through multi-purpose dispatch functions
// selected by a numeric argument, with names and method strings looked up in
// a global table K.

var (
	nSetterPattern        = regexp.MustCompile(`(\w+)\[0\]\((\w+)\)\s*,\s*\w+\[(?:\w+\[\d+\]|"set")\]\((?:\w+\[\d+\]|"n")`)
	delegatePattern       = regexp.MustCompile(`return\s+(\w+)\[(?:\w+\[\d+\]|"call")\]\(this\s*,\s*(\d+)\s*,\s*\w+\)`)
	wrapperCallPattern    = regexp.MustCompile(`return\s+(\w+)\[(?:\w+\[\d+\]|"call")\]\(this`)
	dispatchArrayPattern  = regexp.MustCompile(`(?s)\[[-\d]+,.*?\];`)
	identifierPattern     = regexp.MustCompile(`[a-zA-Z_$][a-zA-Z0-9_$]*`)
	dispatchHelperPattern = regexp.MustCompile(`(\w+)=\{(\w+:function\(\w,?\w?\)\{[^}]+\}[,\n]*){2,4}\}`)
	breakGuardPattern     = regexp.MustCompile(`if\s*\(\s*typeof\s+\w+\s*===?\s*(?:K\[\d+\]|"undefined"|'undefined')\s*\)\s*\{[^}]*break\s+\w+[^}]*\}`)
)

const dispatchStubs = "var g={zV:function(){},U:function(){},GV:function(){},lQ:Error};\nvar xA0=\"\";\n"

const maxDispatchRounds = 3

var nonReferences = map[string]bool{
	"K": true, "function": true, "return": true, "var": true, "typeof": true,
	"null": true, "undefined": true, "this": true, "Math": true, "String": true,
	"Object": true, "Error": true, "Number": true, "Array": true,
}

// extractDispatchN assembles the entry function, its dispatch function and
// every wrapper they reach into one script.
func extractDispatchN(b *Body) (*Snippet, error) {
	kDef, ok := FindKArray(b.Text)
	if !ok {
		return nil, ErrPatternNotFound
	}
	setter := nSetterPattern.FindStringSubmatch(b.Text)
	if len(setter) < 2 {
		return nil, ErrPatternNotFound
	}
	arrayRe, err := re.Compile(regexp.QuoteMeta(setter[1]) + `\s*=\s*\[(\w+)\]`)
	if err != nil {
		return nil, err
	}
	arrayDef := arrayRe.FindStringSubmatch(b.Text)
	if len(arrayDef) < 2 {
		return nil, ErrPatternNotFound
	}
	entryName := arrayDef[1]
	entry, ok := FindFunction(b.Text, entryName)
	if !ok {
		return nil, ErrPatternNotFound
	}
	delegate := delegatePattern.FindStringSubmatch(entry.Text)
	if len(delegate) < 2 {
		return nil, ErrPatternNotFound
	}
	mainName := delegate[1]
	main, ok := FindFunction(b.Text, mainName)
	if !ok {
		return nil, ErrPatternNotFound
	}

	funcs := newOrderedFuncs()
	funcs.add(entry)
	funcs.add(main)
	dispatchers := map[string]bool{mainName: true}

	var queue []string
	if arr := dispatchArrayPattern.FindString(main.Text); arr != "" {
		for _, ref := range identifierPattern.FindAllString(arr, -1) {
			if ref != "K" && ref != "b" && ref != "null" && len(ref) > 1 {
				queue = append(queue, ref)
			}
		}
	}

	for round := 0; round < maxDispatchRounds && len(queue) > 0; round++ {
		batch := queue
		queue = nil
		for _, name := range batch {
			if funcs.has(name) {
				continue
			}
			def, ok := FindFunction(b.Text, name)
			if !ok {
				continue
			}
			funcs.add(def)
			call := wrapperCallPattern.FindStringSubmatch(def.Text)
			if len(call) < 2 || funcs.has(call[1]) || dispatchers[call[1]] {
				continue
			}
			dispatchers[call[1]] = true
			disp, ok := FindFunction(b.Text, call[1])
			if !ok {
				continue
			}
			funcs.add(disp)
			for _, ref := range identifierPattern.FindAllString(disp.Text, -1) {
				if len(ref) >= 3 && !funcs.has(ref) && !nonReferences[ref] {
					queue = append(queue, ref)
				}
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(kDef)
	sb.WriteString(";\n")
	sb.WriteString(dispatchStubs)
	if po, ok := findShortObject(b.Text, "po={", 500); ok {
		sb.WriteString("var ")
		sb.WriteString(po)
		sb.WriteString(";\n")
	}
	for _, def := range funcs.defs {
		sb.WriteString("var ")
		sb.WriteString(def.Text)
		sb.WriteString(";\n")
	}
	prelude := breakGuardPattern.ReplaceAllString(sb.String(), "")
	return &Snippet{Code: callSnippet(sandbox.KindN, prelude, entryName)}, nil
}

// extractDispatchSignature rebuilds the decipher chain from calls of the form
// helper[K[i]](a,N) into a flat splice/reverse/swap function.
func extractDispatchSignature(b *Body) (*Snippet, error) {
	kDef, ok := FindKArray(b.Text)
	if !ok {
		return nil, ErrPatternNotFound
	}
	table, err := sandbox.EvalStrings(kDef, "K")
	if err != nil {
		return nil, fmt.Errorf("evaluate lookup table: %w", err)
	}
	spliceIdx, reverseIdx := indexOf(table, "splice"), indexOf(table, "reverse")
	if spliceIdx < 0 || reverseIdx < 0 {
		return nil, ErrPatternNotFound
	}

	helperName := ""
	spliceRef, reverseRef := "K["+strconv.Itoa(spliceIdx)+"]", "K["+strconv.Itoa(reverseIdx)+"]"
	for _, m := range dispatchHelperPattern.FindAllStringSubmatch(b.Text, -1) {
		if strings.Contains(m[0], spliceRef) && strings.Contains(m[0], reverseRef) {
			helperName = m[1]
			break
		}
	}
	if helperName == "" {
		return nil, ErrPatternNotFound
	}

	callRe, err := re.Compile(regexp.QuoteMeta(helperName) + `\[K\[(\d+)\]\]\(\w+,(\d+)\)`)
	if err != nil {
		return nil, err
	}
	chainStart, chainEnd, count := -1, -1, 0
	for _, loc := range callRe.FindAllStringIndex(b.Text, -1) {
		if chainStart < 0 || loc[0]-chainEnd > 200 {
			chainStart = loc[0]
			count = 1
		} else {
			count++
		}
		chainEnd = loc[1]
		if count >= 2 {
			break
		}
	}
	if count < 2 {
		return nil, ErrPatternNotFound
	}

	region := b.Text[max(0, chainStart-100):min(len(b.Text), chainEnd+50)]
	var ops []sandbox.Op
	var fn strings.Builder
	fn.WriteString("function(sig){var a=sig.split(\"\");\n")
	for _, c := range callRe.FindAllStringSubmatch(region, -1) {
		methodIdx, _ := strconv.Atoi(c[1])
		arg, _ := strconv.Atoi(c[2])
		switch {
		case methodIdx == spliceIdx:
			ops = append(ops, sandbox.Op{Code: sandbox.OpSplice, Arg: arg})
			fmt.Fprintf(&fn, "a.splice(0,%d);\n", arg)
		case methodIdx == reverseIdx:
			ops = append(ops, sandbox.Op{Code: sandbox.OpReverse})
			fn.WriteString("a.reverse();\n")
		default:
			ops = append(ops, sandbox.Op{Code: sandbox.OpSwap, Arg: arg})
			fmt.Fprintf(&fn, "var t=a[0];a[0]=a[%d%%a.length];a[%d%%a.length]=t;\n", arg, arg)
		}
	}
	if len(ops) == 0 {
		return nil, ErrPatternNotFound
	}
	fn.WriteString("return a.join(\"\")}")
	return &Snippet{Code: callSnippet(sandbox.KindSignature, "", fn.String()), Ops: ops}, nil
}

// findShortObject returns `name={...}` starting at marker when it closes
// within limit bytes.
func findShortObject(body, marker string, limit int) (string, bool) {
	start := strings.Index(body, marker)
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < min(len(body), start+limit); i++ {
		switch body[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return body[start : i+1], true
			}
		}
	}
	return "", false
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

type orderedFuncs struct {
	defs  []FuncDef
	names map[string]bool
}

func newOrderedFuncs() *orderedFuncs {
	return &orderedFuncs{names: make(map[string]bool)}
}

func (o *orderedFuncs) add(def FuncDef) {
	if o.names[def.Name] {
		return
	}
	o.names[def.Name] = true
	o.defs = append(o.defs, def)
}

func (o *orderedFuncs) has(name string) bool {
	return o.names[name]
}
