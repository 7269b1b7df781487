package svgrecolor

import "strings"

// declaration is one "key:value" item of a style attribute.
type declaration struct {
	key, value string
}

// style is an ordered list of declarations. Unparsable items
// are kept verbatim, with an empty key.
type style []declaration

func parseStyle(s string) style {
	var out style
	for _, pair := range strings.Split(s, ";") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, ":")
		if !ok {
			out = append(out, declaration{value: pair})
			continue
		}
		out = append(out, declaration{
			key:   strings.ToLower(strings.TrimSpace(k)),
			value: strings.TrimSpace(v),
		})
	}
	return out
}

func (st style) get(key string) (string, bool) {
	for _, d := range st {
		if d.key == key {
			return d.value, true
		}
	}
	return "", false
}

// set updates every declaration of `key`, or appends one.
func (st style) set(key, value string) style {
	found := false
	for i := range st {
		if st[i].key == key {
			st[i].value = value
			found = true
		}
	}
	if !found {
		st = append(st, declaration{key: key, value: value})
	}
	return st
}

func (st style) String() string {
	var b strings.Builder
	for i, d := range st {
		if i != 0 {
			b.WriteByte(';')
		}
		if d.key == "" {
			b.WriteString(d.value)
			continue
		}
		b.WriteString(d.key)
		b.WriteByte(':')
		b.WriteString(d.value)
	}
	return b.String()
}
