package light

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the meaning of an inbound device message.
type Kind string

// Message kinds, keyed by topic suffix in the routing table.
const (
	KindConnected         Kind = "connected"
	KindState             Kind = "state"
	KindEffectList        Kind = "effects"
	KindConfig            Kind = "config"
	KindDiscoveryResponse Kind = "hello"
)

// payload is implemented by every wire payload.
type payload interface {
	Validate() []Violation
}

func newPayload(kind Kind) (payload, error) {
	switch kind {
	case KindConnected:
		return &ConnectionPayload{}, nil
	case KindState:
		return &StatePayload{}, nil
	case KindEffectList:
		return &EffectListPayload{}, nil
	case KindConfig, KindDiscoveryResponse:
		return &ConfigPayload{}, nil
	default:
		return nil, fmt.Errorf("unknown message kind %q", kind)
	}
}

// Decode parses raw as the payload for kind and validates it.
// It never panics. A nil payload is returned together with the violations
// whenever the message is unusable; a JSON syntax error is reported on field "$".
func Decode(kind Kind, raw []byte) (any, []Violation) {
	p, err := newPayload(kind)
	if err != nil {
		return nil, []Violation{{Field: "$", Message: err.Error()}}
	}

	normalized, err := normalizeIntegers(raw)
	if err != nil {
		return nil, []Violation{decodeViolation(err)}
	}
	if err := json.Unmarshal(normalized, p); err != nil {
		return nil, []Violation{decodeViolation(err)}
	}

	if vs := p.Validate(); len(vs) > 0 {
		return nil, vs
	}
	return p, nil
}

// normalizeIntegers rewrites integral numbers such as 50.0 or 5e1 as plain
// integers so they decode into int fields. Fractions are left alone and
// still fail the int decode.
func normalizeIntegers(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after top-level value")
	}
	return json.Marshal(rewriteNumbers(v))
}

func rewriteNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = rewriteNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = rewriteNumbers(e)
		}
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return t
		}
		f, err := t.Float64()
		if err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return json.Number(strconv.FormatInt(int64(f), 10))
		}
	}
	return v
}

func decodeViolation(err error) Violation {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return Violation{Field: typeErr.Field, Message: "must be of type " + typeErr.Type.String()}
	}
	return Violation{Field: "$", Message: err.Error()}
}

// Encode validates p and serialises it as compact JSON.
func Encode(p *PublishPayload) ([]byte, error) {
	if err := validationError(p.Validate()); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encoding publish payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
