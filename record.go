package reqlog

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Record is a single structured log record as it travels through the pipeline. Records are treated as immutable
// once emitted: processors return a modified copy instead of changing the maps of the record they received.
type Record struct {
	Time    time.Time
	Level   zapcore.Level
	Channel string
	Message string
	Context map[string]any
	Extra   map[string]any
}

// WithExtra returns a copy of the record with key set in its extra map.
func (r Record) WithExtra(key string, val any) Record {
	extra := make(map[string]any, len(r.Extra)+1)
	maps.Copy(extra, r.Extra)
	extra[key] = val
	r.Extra = extra

	return r
}

// Format renders the message template by substituting every placeholder from the context map. Longer placeholders
// are replaced first so that "@user_id" never gets clobbered by a "@user" placeholder.
func (r Record) Format() string {
	if len(r.Context) == 0 {
		return r.Message
	}

	keys := make([]string, 0, len(r.Context))
	for k := range r.Context {
		if k != "" {
			keys = append(keys, k)
		}
	}

	slices.SortFunc(keys, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), cmp.Compare(a, b))
	})

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, fmt.Sprint(r.Context[k]))
	}

	return strings.NewReplacer(pairs...).Replace(r.Message)
}
