// Package sanitize cleans untrusted query-string values before they reach an
// attribution record.
// Pipeline order for a scalar value
// 1 drop control bytes and invalid UTF-8
// 2 repeated percent-decoding, bounded, until the value decodes to itself
// 3 trim
// 4 Unicode NFKC and width folding
// 5 strip HTML tags (entities are unescaped afterwards)
// 6 truncate to MaxRunes
// 7 drop characters outside the allow-list
// 8 remove SQL comment/terminator sequences
// JSON-looking values that parse are cleaned leaf by leaf and re-encoded instead.
package sanitize

import (
	"encoding/json"
	"html"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const (
	// MaxRunes bounds every stored value
	MaxRunes = 255

	// maxDecodePasses bounds repeated percent-decoding of double-encoded values
	maxDecodePasses = 5

	// maxDepth bounds recursion into JSON-looking values
	maxDepth = 8
)

var (
	disallowed = regexp.MustCompile(`[^a-zA-Z0-9_\-%.@+~$!:=;/|\[\]() ]`)
	sqlMeta    = strings.NewReplacer("--", "", "/*", "", "*/", "", ";", "")
	strict     = bluemonday.StrictPolicy()
)

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFKC, width.Fold)
	},
}

// Value returns the canonical sanitized form of a raw parameter value
func Value(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.TrimSpace(Decode(StripControls(raw)))
	if s == "" {
		return ""
	}

	if looksLikeJSON(s) {
		if out, ok := jsonValue(s); ok {
			return out
		}
	}
	return scalar(s)
}

// Decode percent-decodes s until it stops changing or maxDecodePasses is hit
// '+' is kept literal; the query parser already turned form-encoded spaces into ' '
func Decode(s string) string {
	for i := 0; i < maxDecodePasses; i++ {
		d, err := url.PathUnescape(s)
		if err != nil || d == s {
			return s
		}
		s = d
	}
	return s
}

func scalar(s string) string {
	s = fold(s)
	s = stripHTML(s)
	s = truncate(strings.TrimSpace(s), MaxRunes)
	s = disallowed.ReplaceAllString(s, "")
	return sqlMeta.Replace(s)
}

func fold(s string) string {
	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		return s
	}
	return out
}

func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	return html.UnescapeString(strict.Sanitize(s))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

func looksLikeJSON(s string) bool {
	first, last := s[0], s[len(s)-1]
	return (first == '{' && last == '}') || (first == '[' && last == ']')
}

// jsonValue cleans every key and string leaf and re-encodes compactly
// a result that would not fit MaxRunes falls back to scalar cleaning
func jsonValue(s string) (string, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return "", false
	}
	b, err := json.Marshal(cleanJSON(v, 0))
	if err != nil || len([]rune(string(b))) > MaxRunes {
		return "", false
	}
	return string(b), true
}

func cleanJSON(v any, depth int) any {
	if depth > maxDepth {
		return nil
	}
	switch t := v.(type) {
	case string:
		return scalar(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if ck := scalar(k); ck != "" {
				out[ck] = cleanJSON(val, depth+1)
			}
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			out = append(out, cleanJSON(val, depth+1))
		}
		return out
	default:
		return t
	}
}
