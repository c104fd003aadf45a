package reqlog

import (
	"context"
	"os"
)

// Probe is a single step in a layered fallback lookup. A probe is total: it reports absence by returning false and
// never returns an error or panics to its caller.
type Probe func(ctx context.Context) (string, bool)

// FirstOf runs the probes in order and returns the first value that is present.
func FirstOf(ctx context.Context, probes ...Probe) (string, bool) {
	for _, p := range probes {
		if p == nil {
			continue
		}

		if v, ok := p(ctx); ok {
			return v, true
		}
	}

	return "", false
}

// Value probes a directly supplied value. Empty strings are absent.
func Value(v string) Probe {
	return func(context.Context) (string, bool) {
		return v, v != ""
	}
}

// LookupEnvFunc matches the signature of [os.LookupEnv].
type LookupEnvFunc func(key string) (string, bool)

// EnvVar probes an environment variable. A nil lookup falls back to [os.LookupEnv]. Variables that are set to an
// empty string are absent.
func EnvVar(lookup LookupEnvFunc, name string) Probe {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	return func(context.Context) (string, bool) {
		v, ok := lookup(name)
		return v, ok && v != ""
	}
}

// Guard turns a fallible lookup into a total probe. Errors, panics and empty results all become absent.
func Guard(fn func(ctx context.Context) (string, error)) Probe {
	if fn == nil {
		return nil
	}

	return func(ctx context.Context) (v string, ok bool) {
		defer func() {
			if r := recover(); r != nil {
				v, ok = "", false
			}
		}()

		v, err := fn(ctx)
		if err != nil || v == "" {
			return "", false
		}

		return v, true
	}
}
