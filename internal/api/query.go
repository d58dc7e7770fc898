package api

import (
	"net/url"
	"strings"
)

// Pair is one name=value query parameter.
type Pair struct {
	Name  string
	Value string
}

// parseQueryOrdered splits a raw query into pairs preserving request
// order, which url.Values cannot do. Percent-escapes are decoded;
// undecodable components are kept verbatim. Empty components are
// skipped.
func parseQueryOrdered(rawQuery string) []Pair {
	if rawQuery == "" {
		return nil
	}

	components := strings.Split(rawQuery, "&")
	pairs := make([]Pair, 0, len(components))
	for _, component := range components {
		if component == "" {
			continue
		}
		name, value, _ := strings.Cut(component, "=")
		if name == "" {
			continue
		}
		pairs = append(pairs, Pair{
			Name:  unescape(name),
			Value: unescape(value),
		})
	}
	return pairs
}

func unescape(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
