package sanitizer

import (
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var keyPipeline = Pipeline{TrimAndNormalize, strings.ToLower}

// NormalizeKey is used for values compared case-insensitively, such as
// languages and governorates.
func NormalizeKey(s string) string {
	return keyPipeline.Apply(s)
}

func NormalizeKeys(values []string) []string {
	return NormalizeStringSlice(values, NormalizeKey)
}

// NormalizeText trims free text, keeping line breaks inside it.
func NormalizeText(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = TrimAndNormalize(line)
	}
	return strings.Join(lines, "\n")
}
