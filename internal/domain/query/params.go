package query

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	fieldsPattern = regexp.MustCompile(`^fields\[([^\]]+)\]$`)
	filterPattern = regexp.MustCompile(`^filter\[([^\]]+)\]$`)
)

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseFields collects fields[type]=a,b parameters.
func parseFields(raw url.Values) map[string][]string {
	out := make(map[string][]string)
	for key, values := range raw {
		m := fieldsPattern.FindStringSubmatch(key)
		if len(m) != 2 {
			continue
		}
		if len(values) == 0 {
			out[m[1]] = []string{}
			continue
		}
		list := splitList(values[0])
		if list == nil {
			list = []string{}
		}
		out[m[1]] = list
	}
	return out
}

// parseFilter collects filter[key]=value parameters.
func parseFilter(raw url.Values) map[string]string {
	out := make(map[string]string)
	for key, values := range raw {
		m := filterPattern.FindStringSubmatch(key)
		if len(m) != 2 || len(values) == 0 {
			continue
		}
		out[m[1]] = values[0]
	}
	return out
}
