package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"campaigncollector/internal/core/accessor"
	"campaigncollector/internal/platform/metrics"
)

// Transforms are the named filters FILTERS can bind to a key
var Transforms = map[string]accessor.Filter{
	"lower": stringFilter(strings.ToLower),
	"upper": stringFilter(strings.ToUpper),
	"trim":  stringFilter(strings.TrimSpace),
	"hash": stringFilter(func(s string) string {
		sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(s))))
		return hex.EncodeToString(sum[:])
	}),
}

func stringFilter(fn func(string) string) accessor.Filter {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("filter: want string, got %T", v)
		}
		return fn(s), nil
	}
}

// BuildFilters resolves key -> transform name into accessor filters; failures
// are counted per key
func BuildFilters(byKey map[string]string, m *metrics.Metrics) map[string]accessor.Filter {
	out := make(map[string]accessor.Filter, len(byKey))
	for key, name := range byKey {
		f, ok := Transforms[name]
		if !ok {
			continue
		}
		out[key] = counted(key, f, m)
	}
	return out
}

func counted(key string, f accessor.Filter, m *metrics.Metrics) accessor.Filter {
	return func(v any) (out any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				m.FilterFailure(key)
				panic(rec)
			}
		}()
		out, err = f(v)
		if err != nil {
			m.FilterFailure(key)
		}
		return out, err
	}
}
