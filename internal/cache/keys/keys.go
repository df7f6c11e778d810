package keys

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/agro-zonal/internal/core/model"
)

const reportNamespace = "report"

// GenerationPrefix is shared by every report key computed against one
// reference-data generation.
func GenerationPrefix(generation uint64) string {
	return fmt.Sprintf("%s:g%d:", reportNamespace, generation)
}

// ReportKey identifies a report by canonical AOI key, layer set, request
// options and snapshot generation. Layer order does not matter.
func ReportKey(aoiKey string, layers []model.LayerKind, opts string, generation uint64) string {
	ls := slices.Clone(layers)
	slices.Sort(ls)
	ls = slices.Compact(ls)
	names := make([]string, len(ls))
	for i, l := range ls {
		names[i] = l.String()
	}

	optText := collapseASCIIWhitespace(opts)
	optSafe := sanitizeForKey(optText)
	const maxOptTextLen = 96
	if len(optSafe) > maxOptTextLen {
		optSafe = optSafe[:maxOptTextLen]
	}
	sum := xxhash.Sum64String(optText)

	return fmt.Sprintf("%s%s:%s:opts=%s:o=%016x",
		GenerationPrefix(generation), sanitizeForKey(aoiKey), strings.Join(names, ","), optSafe, sum)
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '=' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
