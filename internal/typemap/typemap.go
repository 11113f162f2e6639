// Package typemap translates native column types into semantic types plus
// default cast, validation and fake-data hints. Lookups never fail: types
// that are not recognized degrade to a string.
package typemap

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tordrt/relschema/internal/schema"
)

// Mapping is the result of a type lookup
type Mapping struct {
	Type       schema.SemanticType
	Cast       string
	Validation string
	Fake       string
}

// hints holds the default generator hints for each semantic type
var hints = map[schema.SemanticType]Mapping{
	schema.TypeString:     {Cast: "string", Validation: "string", Fake: "word"},
	schema.TypeText:       {Cast: "string", Validation: "string", Fake: "paragraph"},
	schema.TypeInteger:    {Cast: "integer", Validation: "integer", Fake: "randomNumber"},
	schema.TypeBigInteger: {Cast: "integer", Validation: "integer", Fake: "randomNumber"},
	schema.TypeDecimal:    {Cast: "decimal:2", Validation: "numeric", Fake: "randomFloat"},
	schema.TypeFloat:      {Cast: "float", Validation: "numeric", Fake: "randomFloat"},
	schema.TypeDouble:     {Cast: "double", Validation: "numeric", Fake: "randomFloat"},
	schema.TypeBoolean:    {Cast: "boolean", Validation: "boolean", Fake: "boolean"},
	schema.TypeDate:       {Cast: "date", Validation: "date", Fake: "date"},
	schema.TypeDateTime:   {Cast: "datetime", Validation: "date", Fake: "dateTime"},
	schema.TypeTime:       {Cast: "string", Validation: "date_format:H:i:s", Fake: "time"},
	schema.TypeYear:       {Cast: "integer", Validation: "digits:4", Fake: "year"},
	schema.TypeJSON:       {Cast: "array", Validation: "json", Fake: "json"},
	schema.TypeEnum:       {Cast: "string", Validation: "string", Fake: "randomElement"},
	schema.TypeUUID:       {Cast: "string", Validation: "uuid", Fake: "uuid"},
	schema.TypeBinary:     {Cast: "string", Validation: "string", Fake: "sha256"},
}

// For returns the default mapping of a semantic type
func For(t schema.SemanticType) Mapping {
	m, ok := hints[t]
	if !ok {
		m = hints[schema.TypeString]
		t = schema.TypeString
	}
	m.Type = t
	return m
}

// MapType resolves a native type string for the given engine. Parameterized
// special cases such as tinyint(1) are checked before the generic name
// table, then engine affinity rules apply, then the string fallback.
func MapType(engine schema.Engine, native string) Mapping {
	head, base := split(native)

	table := tables[engine]
	if table == nil {
		table = common
	}

	if t, ok := table.special[head]; ok {
		return For(t)
	}
	if t, ok := table.names[base]; ok {
		return For(t)
	}
	if table.affinity != nil {
		if t, ok := table.affinity(base); ok {
			return For(t)
		}
	}
	return For(schema.TypeString)
}

// Normalize returns the lower-cased native type with parameters and
// modifiers stripped, e.g. "VARCHAR(255)" -> "varchar".
func Normalize(native string) string {
	_, base := split(native)
	return base
}

// IsUnsigned reports whether a native type carries the unsigned modifier
func IsUnsigned(native string) bool {
	for _, f := range strings.Fields(strings.ToLower(native)) {
		if f == "unsigned" {
			return true
		}
	}
	return false
}

var (
	parenSpace = regexp.MustCompile(`\s*([(),])\s*`)
	paramGroup = regexp.MustCompile(`\([^)]*\)`)
)

var modifiers = map[string]bool{
	"unsigned": true,
	"signed":   true,
	"zerofill": true,
}

// split lower-cases and tidies native. head is the first token with its
// parameters ("tinyint(1)"), base is the full name without parameters or
// modifiers ("timestamp without time zone").
func split(native string) (head, base string) {
	s := strings.ToLower(strings.TrimSpace(native))
	s = strings.Join(strings.Fields(s), " ")
	s = parenSpace.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, ")", ") ")
	s = strings.TrimSpace(strings.Join(strings.Fields(s), " "))

	if fields := strings.Fields(s); len(fields) > 0 {
		head = fields[0]
	}

	stripped := paramGroup.ReplaceAllString(s, " ")
	var parts []string
	for _, f := range strings.Fields(stripped) {
		if modifiers[f] {
			continue
		}
		parts = append(parts, f)
	}
	return head, strings.Join(parts, " ")
}

// Params returns the numeric parameters of a native type, e.g.
// "decimal(10,2)" -> [10 2]. Non-numeric parameters such as "max" are skipped.
func Params(native string) []int {
	group := paramGroup.FindString(native)
	if group == "" {
		return nil
	}
	var out []int
	for _, p := range strings.Split(strings.Trim(group, "()"), ",") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// ParseEnumValues extracts the ordered values of an enum('a','b') or
// set('a','b') type. Quoted values may contain commas and doubled quotes.
func ParseEnumValues(native string) []string {
	s := strings.TrimSpace(native)
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "enum(") && !strings.HasPrefix(lower, "set(") {
		return nil
	}
	start := strings.Index(s, "(")
	end := strings.LastIndex(s, ")")
	if start == -1 || end <= start {
		return nil
	}
	body := s[start+1 : end]

	var (
		values  []string
		current strings.Builder
		quoted  bool
		opened  bool
	)
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\'' && quoted && i+1 < len(body) && body[i+1] == '\'':
			current.WriteByte('\'')
			i++
		case c == '\'':
			quoted = !quoted
			opened = true
		case c == ',' && !quoted:
			values = append(values, current.String())
			current.Reset()
		case quoted:
			current.WriteByte(c)
		}
	}
	if opened || current.Len() > 0 || len(values) > 0 {
		values = append(values, current.String())
	}
	return values
}
