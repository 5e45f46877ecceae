package autofill

import (
	"encoding/json"
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

type entry struct {
	path   string
	key    string   // normalized last segment
	tokens []string // tokens of the whole path
	value  string
}

func (en entry) suggestion(field string, rule Rule) Suggestion {
	return Suggestion{Field: field, Value: en.value, Path: en.path, Rule: rule}
}

type node struct {
	path   []string
	tokens []string
	value  any
}

// flatten walks data breadth first with sorted keys, so shallow keys come
// before deep ones and traversal order is stable. Objects are emitted as
// entries too and then descended into. Arrays are leaves.
func flatten(data map[string]any) []entry {
	var out []entry
	queue := []node{{value: data}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		obj, ok := cur.value.(map[string]any)
		if !ok {
			continue
		}
		for _, k := range slices.Sorted(maps.Keys(obj)) {
			v := obj[k]
			path := append(slices.Clone(cur.path), k)
			keyTokens := tokenize(k)
			tokens := append(slices.Clone(cur.tokens), keyTokens...)
			out = append(out, entry{
				path:   strings.Join(path, "."),
				key:    strings.Join(keyTokens, ""),
				tokens: tokens,
				value:  stringify(v),
			})
			if _, isObj := v.(map[string]any); isObj {
				queue = append(queue, node{path: path, tokens: tokens, value: v})
			}
		}
	}
	return out
}

// tokenize splits camelCase, snake_case, kebab-case and spaced keys into
// lower-case words.
func tokenize(s string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r):
			// Split before an upper-case rune that starts a new word, keeping
			// acronyms like "URL" together.
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			prevUpper := i > 0 && unicode.IsUpper(runes[i-1])
			if prevLower || (prevUpper && nextLower) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return tokens
}

func normalize(s string) string {
	return strings.Join(tokenize(s), "")
}

var labelKeys = []string{"title", "name", "label", "value", "summary", "description", "text"}

const maxSummaryRunes = 280

// stringify renders a JSON value as a field value. Objects become a short
// summary rather than raw JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		return truncate(summarize(t), maxSummaryRunes)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// summarize uses the first label-like key as the headline and lists the
// remaining keys as "k: v" pairs.
func summarize(obj map[string]any) string {
	headline := ""
	used := ""
	for _, k := range labelKeys {
		if s := stringify(obj[k]); s != "" {
			headline, used = s, k
			break
		}
	}
	var pairs []string
	for _, k := range slices.Sorted(maps.Keys(obj)) {
		if k == used {
			continue
		}
		if s := stringify(obj[k]); s != "" {
			pairs = append(pairs, k+": "+s)
		}
	}
	switch {
	case headline == "":
		return strings.Join(pairs, "; ")
	case len(pairs) == 0:
		return headline
	default:
		return headline + " (" + strings.Join(pairs, "; ") + ")"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
