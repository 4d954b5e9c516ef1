// Package placeholder expands ${name} tokens in page paths, content paths
// and hostnames. Values come from the configured placeholder map first and
// from the process environment second.
package placeholder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/valyala/fasttemplate"

	"evalgo.org/sitesync/models"
)

const (
	startTag = "${"
	endTag   = "}"
)

// ErrUnknown is returned for a token with no value.
var ErrUnknown = errors.New("unknown placeholder")

// Resolver expands placeholder tokens.
type Resolver struct {
	values    map[string]string
	lookupEnv func(string) (string, bool)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEnv replaces the environment lookup. Passing nil disables it.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(r *Resolver) { r.lookupEnv = lookup }
}

// New creates a resolver over values. Keys match case-insensitively since
// viper lowercases map keys read from configuration.
func New(values map[string]string, opts ...Option) *Resolver {
	r := &Resolver{values: make(map[string]string, len(values)), lookupEnv: os.LookupEnv}
	for k, v := range values {
		r.values[strings.ToLower(k)] = v
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve expands every token in s.
func (r *Resolver) Resolve(s string) (string, error) {
	if !strings.Contains(s, startTag) {
		return s, nil
	}
	return fasttemplate.ExecuteFuncStringWithErr(s, startTag, endTag, func(w io.Writer, tag string) (int, error) {
		v, err := r.lookup(strings.TrimSpace(tag))
		if err != nil {
			return 0, err
		}
		return w.Write([]byte(v))
	})
}

func (r *Resolver) lookup(name string) (string, error) {
	if v, ok := r.values[strings.ToLower(name)]; ok {
		return v, nil
	}
	if r.lookupEnv != nil {
		if v, ok := r.lookupEnv(name); ok {
			return v, nil
		}
		if v, ok := r.lookupEnv(strings.ToUpper(name)); ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknown, name)
}

// Func adapts the resolver to the site option.
func (r *Resolver) Func() models.PlaceholderFunc {
	return r.Resolve
}
