// Package ffmpegutil collects the small astiav.Dictionary helpers shared
// across the demux, decode, and encode packages: building an options
// dictionary from a flat key=value string, and rendering one back out for
// logging.
package ffmpegutil

import (
	"fmt"
	"sort"
	"strings"

	astiav "github.com/asticode/go-astiav"
)

// ParseOptions splits a whitespace-separated "-key=value" token string
// into a map, the same token grammar as the teacher's parseFFmpegParams
// minus the f/c prefix split: here every token applies to whichever
// dictionary the caller passes to Apply, since this package has no
// notion of "format dictionary" vs "decoder dictionary" of its own.
func ParseOptions(s string) map[string]string {
	opts := make(map[string]string)
	for _, tok := range strings.Fields(s) {
		if len(tok) < 2 || tok[0] != '-' {
			continue
		}
		rest := tok[1:]
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 || eq == len(rest)-1 {
			continue
		}
		key := rest[:eq]
		val := rest[eq+1:]
		if len(val) >= 2 {
			if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
				val = val[1 : len(val)-1]
			}
		}
		opts[key] = val
	}
	return opts
}

// Apply sets every entry of opts on d.
func Apply(opts map[string]string, d *astiav.Dictionary) {
	if d == nil {
		return
	}
	for k, v := range opts {
		d.Set(k, v, 0)
	}
}

// Pairs returns d's entries as sorted "key=value" strings for logging,
// generalized from the teacher's DictPairs/JoinDict.
func Pairs(d *astiav.Dictionary) []string {
	if d == nil {
		return nil
	}
	var pairs []string
	var prev *astiav.DictionaryEntry
	flags := astiav.NewDictionaryFlags(astiav.DictionaryFlagIgnoreSuffix)
	for {
		e := d.Get("", prev, flags)
		if e == nil {
			break
		}
		pairs = append(pairs, fmt.Sprintf("%s=%s", e.Key(), e.Value()))
		prev = e
	}
	sort.Strings(pairs)
	return pairs
}

// Join renders Pairs as one space-separated line.
func Join(d *astiav.Dictionary) string {
	return strings.Join(Pairs(d), " ")
}
