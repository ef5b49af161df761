package effect

import (
	"fmt"
)

// Effect is an immutable description of one requested side effect.
// It is pure data: a kind discriminant plus a kind-specific payload
// object. It holds no handles, no connections, and no references to
// live infrastructure state. Equal payloads mean equal behavior
// expectations, so an optimizer may deduplicate on ID.
type Effect struct {
	Kind    Kind   `json:"kind"`
	Payload Object `json:"payload"`
}

// ID computes the content-addressed identity of the effect from its
// canonical serialization.
func (e Effect) ID() (string, error) {
	canonical, err := MarshalCanonical(Object{
		"kind":    String(e.Kind),
		"payload": e.Payload,
	})
	if err != nil {
		return "", fmt.Errorf("effect ID: %w", err)
	}
	return hashWithDomain(DomainEffect, canonical), nil
}

// MustID is like ID but panics on error. Use only in tests or when the
// payload is known to be canonicalizable.
func (e Effect) MustID() string {
	id, err := e.ID()
	if err != nil {
		panic(err)
	}
	return id
}

// Equal reports payload-level equality of two effects.
func (e Effect) Equal(other Effect) bool {
	return e.Kind == other.Kind && Equal(e.Payload, other.Payload)
}

// DBQuery describes a database query: SQL text, positional parameters,
// and a multiplicity mode.
func DBQuery(sql string, params Array, mode QueryMode) Effect {
	if params == nil {
		params = Array{}
	}
	return Effect{
		Kind: KindDBQuery,
		Payload: Object{
			"sql":    String(sql),
			"params": params,
			"mode":   String(mode),
		},
	}
}

// HTTPRequest describes an HTTP call. timeoutMS bounds the request; the
// runner applies the smaller of this and its own budget. A zero
// timeoutMS defers entirely to the runner budget.
func HTTPRequest(method, url string, headers Object, body string, timeoutMS int64) Effect {
	if headers == nil {
		headers = Object{}
	}
	return Effect{
		Kind: KindHTTPRequest,
		Payload: Object{
			"method":     String(method),
			"url":        String(url),
			"headers":    headers,
			"body":       String(body),
			"timeout_ms": Int(timeoutMS),
		},
	}
}

// KVGet describes a key-value read.
func KVGet(key string) Effect {
	return Effect{
		Kind:    KindKVGet,
		Payload: Object{"key": String(key)},
	}
}

// KVSet describes a key-value write. ttlMS of zero means no expiry.
func KVSet(key string, value Value, ttlMS int64) Effect {
	return Effect{
		Kind: KindKVSet,
		Payload: Object{
			"key":    String(key),
			"value":  value,
			"ttl_ms": Int(ttlMS),
		},
	}
}

// KVDelete describes a key-value removal.
func KVDelete(key string) Effect {
	return Effect{
		Kind:    KindKVDelete,
		Payload: Object{"key": String(key)},
	}
}

// TimeNow describes a current-time read (millisecond epoch output).
func TimeNow() Effect {
	return Effect{Kind: KindTimeNow, Payload: Object{}}
}

// RandBytes describes generation of count cryptographically secure
// random bytes.
func RandBytes(count int64) Effect {
	return Effect{
		Kind:    KindRandBytes,
		Payload: Object{"count": Int(count)},
	}
}

// LogWrite describes a structured log write.
func LogWrite(level LogLevel, message string, fields Object) Effect {
	if fields == nil {
		fields = Object{}
	}
	return Effect{
		Kind: KindLogWrite,
		Payload: Object{
			"level":   String(level),
			"message": String(message),
			"fields":  fields,
		},
	}
}
