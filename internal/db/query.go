package db

import "strings"

// MatchAll is the FT.SEARCH query that matches every indexed document.
const MatchAll = "*"

// TagQuery matches documents whose tag attribute equals any of values.
func TagQuery(attr string, values ...string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return "@" + attr + ":{" + strings.Join(escaped, " | ") + "}"
}

// ContainsQuery matches documents whose text attribute contains every word
// of term as an infix.
func ContainsQuery(attr, term string) string {
	words := strings.Fields(term)
	if len(words) == 0 {
		return ""
	}
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = "*" + EscapeQuery(strings.ToLower(w)) + "*"
	}
	return "@" + attr + ":(" + strings.Join(parts, " ") + ")"
}

// Not negates a query part.
func Not(part string) string {
	if part == "" {
		return ""
	}
	return "-" + part
}

// And intersects query parts, skipping empty ones.
func And(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return MatchAll
	case 1:
		return kept[0]
	}
	return strings.Join(kept, " ")
}

// EscapeQuery escapes FT.SEARCH query syntax characters in s.
func EscapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	" ", "\\ ",
)

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
	`.`, `\.`,
	`,`, `\,`,
)
