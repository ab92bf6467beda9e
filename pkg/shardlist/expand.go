package shardlist

import (
	"fmt"
	"strconv"
	"strings"
)

// Expand expands shell-style brace patterns.
//
//	Expand("a-{0..2}.tar")    -> a-0.tar a-1.tar a-2.tar
//	Expand("a-{00..02}.tar")  -> a-00.tar a-01.tar a-02.tar
//	Expand("{train,val}.tar") -> train.tar val.tar
//
// Patterns without braces are returned unchanged.
func Expand(pattern string) ([]string, error) {
	open := strings.IndexByte(pattern, '{')
	if open < 0 {
		return []string{pattern}, nil
	}
	end, err := matchingBrace(pattern, open)
	if err != nil {
		return nil, err
	}

	prefix, body, suffix := pattern[:open], pattern[open+1:end], pattern[end+1:]

	alts, err := alternatives(body)
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", pattern, err)
	}

	tails, err := Expand(suffix)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, alt := range alts {
		heads, err := Expand(prefix + alt)
		if err != nil {
			return nil, err
		}
		for _, h := range heads {
			for _, t := range tails {
				out = append(out, h+t)
			}
		}
	}
	return out, nil
}

// ExpandAll expands every pattern and concatenates the results in order.
func ExpandAll(patterns []string) ([]string, error) {
	var out []string
	for _, p := range patterns {
		urls, err := Expand(p)
		if err != nil {
			return nil, err
		}
		out = append(out, urls...)
	}
	return out, nil
}

func matchingBrace(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced brace in %q", s)
}

// alternatives returns the choices inside one brace group: either a numeric
// range "lo..hi" or a comma separated list (commas nested in braces do not split).
func alternatives(body string) ([]string, error) {
	if lo, hi, ok := strings.Cut(body, ".."); ok && !strings.ContainsAny(body, ",{") {
		return numericRange(lo, hi)
	}

	var out []string
	depth, start := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, body[start:i])
				start = i + 1
			}
		}
	}
	return append(out, body[start:]), nil
}

func numericRange(lo, hi string) ([]string, error) {
	a, err := strconv.Atoi(lo)
	if err != nil {
		return nil, fmt.Errorf("bad range start %q: %w", lo, err)
	}
	b, err := strconv.Atoi(hi)
	if err != nil {
		return nil, fmt.Errorf("bad range end %q: %w", hi, err)
	}

	width := 0
	if len(lo) == len(hi) || strings.HasPrefix(lo, "0") {
		width = len(lo)
	}

	step := 1
	if b < a {
		step = -1
	}
	var out []string
	for i := a; ; i += step {
		out = append(out, fmt.Sprintf("%0*d", width, i))
		if i == b {
			break
		}
	}
	return out, nil
}
