package merge

import (
	"fmt"

	"github.com/grafana/profdiff/pkg/profile"
)

// PayloadTypeCompositorScreenshot is the type of screenshot markers. Their
// url field holds a string index.
const PayloadTypeCompositorScreenshot = "CompositorScreenshot"

// PayloadContext translates references embedded in marker payloads of a
// single source thread.
type PayloadContext struct {
	strings     IndexMap
	stackOffset profile.Index
	stacks      int
}

// String translates a string index of the source thread.
func (c *PayloadContext) String(i profile.Index) (profile.Index, error) {
	return c.strings.Rewrite(i)
}

// Stack translates a stack index of the source thread.
func (c *PayloadContext) Stack(i profile.Index) (profile.Index, error) {
	if i.IsNone() {
		return profile.None, nil
	}
	if !i.Valid(c.stacks) {
		return profile.None, fmt.Errorf("%w: stack %d out of range [0, %d)", ErrMalformedInput, i, c.stacks)
	}
	return i + c.stackOffset, nil
}

// PayloadRewriter rewrites the references held by a marker payload. The
// payload passed in is a private copy and may be modified in place.
type PayloadRewriter func(ctx *PayloadContext, data profile.MarkerPayload) error

// StringFieldsRewriter returns a rewriter translating the string indices
// stored under the given keys. Absent and null fields are skipped.
func StringFieldsRewriter(keys ...string) PayloadRewriter {
	return func(ctx *PayloadContext, data profile.MarkerPayload) error {
		for _, k := range keys {
			v, ok := data[k]
			if !ok || v == nil {
				continue
			}
			idx, ok := profile.IndexValue(v)
			if !ok {
				return fmt.Errorf("%w: field %q of %q is not a string index", ErrUnsupportedPayload, k, data.Type())
			}
			idx, err := ctx.String(idx)
			if err != nil {
				return fmt.Errorf("field %q: %w", k, err)
			}
			data[k] = idx
		}
		return nil
	}
}

func rewriteCause(ctx *PayloadContext, data profile.MarkerPayload) error {
	v, ok := data[profile.PayloadCauseKey]
	if !ok || v == nil {
		return nil
	}
	cause, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: cause of %q is not an object", ErrUnsupportedPayload, data.Type())
	}
	s, ok := cause[profile.CauseStackKey]
	if !ok {
		return nil
	}
	stack, ok := profile.IndexValue(s)
	if !ok {
		return fmt.Errorf("%w: cause.stack of %q is not a stack index", ErrUnsupportedPayload, data.Type())
	}
	stack, err := ctx.Stack(stack)
	if err != nil {
		return fmt.Errorf("cause.stack: %w", err)
	}
	cause[profile.CauseStackKey] = stack
	return nil
}

// payloadRewriters dispatches payloads to rewriters by type tag.
type payloadRewriters map[string][]PayloadRewriter

func defaultPayloadRewriters() payloadRewriters {
	return payloadRewriters{
		PayloadTypeCompositorScreenshot: {StringFieldsRewriter("url")},
	}
}

// withSchema returns a copy of the registry extended with rewriters for
// the string fields declared by the marker schemas.
func (r payloadRewriters) withSchema(schemas []profile.MarkerSchema) payloadRewriters {
	c := make(payloadRewriters, len(r)+len(schemas))
	for k, v := range r {
		c[k] = v
	}
	for _, s := range schemas {
		if keys := s.StringFields(); len(keys) > 0 {
			c[s.Name] = append(c[s.Name][:len(c[s.Name]):len(c[s.Name])], StringFieldsRewriter(keys...))
		}
	}
	return c
}

type payloadOptions struct {
	strict bool
}

// rewritePayload returns the payload with its references translated.
// Payloads without references are returned as is; others are copied first.
func (r payloadRewriters) rewritePayload(ctx *PayloadContext, data profile.MarkerPayload, opts payloadOptions) (profile.MarkerPayload, bool, error) {
	if data == nil {
		return nil, false, nil
	}
	typ := data.Type()
	if typ == "" && opts.strict && len(data) > 0 {
		return nil, false, fmt.Errorf("%w: payload has no type", ErrUnsupportedPayload)
	}
	rewriters := r[typ]
	cause, hasCause := data[profile.PayloadCauseKey]
	if len(rewriters) == 0 && (!hasCause || cause == nil) {
		return data, false, nil
	}
	c := data.Clone()
	if err := rewriteCause(ctx, c); err != nil {
		return nil, false, err
	}
	for _, rw := range rewriters {
		if err := rw(ctx, c); err != nil {
			return nil, false, err
		}
	}
	return c, true, nil
}
