package provider

import (
	"strings"
	"unicode"
)

var aliases = map[string][]Name{
	"twitch":    {TwitchClip, TwitchVOD},
	"yt":        {YouTube},
	"x":         {Twitter},
	"kick":      {KickClip},
	"afreeca":   {Soop},
	"afreecatv": {Soop},
}

// ParseEnabled reads a provider setting: names separated by commas or spaces, or one of the
// sentinels "all" and "none". Unknown names are dropped. ok is false when nothing valid remains,
// in which case the caller keeps its previous setting.
func ParseEnabled(input string) (names []Name, ok bool) {
	fields := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(fields) == 1 {
		switch fields[0] {
		case "all":
			return append([]Name{}, Known...), true
		case "none":
			return []Name{}, true
		}
	}
	want := map[Name]bool{}
	for _, f := range fields {
		if n, known := knownName(f); known {
			want[n] = true
			continue
		}
		for _, n := range aliases[f] {
			want[n] = true
		}
	}
	out := make([]Name, 0, len(want))
	for _, n := range Known {
		if want[n] {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// Names converts stored strings to provider names, dropping unknown ones.
func Names(ss []string) []Name {
	out := make([]Name, 0, len(ss))
	for _, s := range ss {
		if n, ok := knownName(s); ok {
			out = append(out, n)
		}
	}
	return out
}

// Strings converts names for storage.
func Strings(names []Name) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
