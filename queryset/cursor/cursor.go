// Package cursor encodes resumable positions in a totally-ordered result
// set as opaque string tokens. A token carries the boundary row's sort-key
// values plus a fingerprint of the sort specification it was issued for,
// so a cursor presented against a different sort (or a tampered token)
// is rejected deterministically instead of silently misordering results.
//
// Tokens are order-preserving-encoded, not encrypted: they leak exactly
// the values the sorting already exposes. They embed no timestamps or
// process-local state and are stable across restarts.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/querylab/queryset-go/queryset/compile"
	"github.com/querylab/queryset-go/queryset/queryerr"
)

// tokenPrefix marks keyset cursors. A visible prefix makes tokens
// self-describing without giving up opacity of the payload.
const tokenPrefix = "keys"

// version of the payload encoding. Bump on incompatible changes; decode
// rejects tokens from other versions.
const version = 1

type payload struct {
	V           int    `json:"v"`
	Fingerprint string `json:"fp"`
	Values      []any  `json:"val"`
}

// Fingerprint digests the entity and sort specification a cursor belongs
// to. Two requests with the same entity, fields and directions produce the
// same fingerprint; anything else invalidates the cursor.
func Fingerprint(entity string, key compile.SortKey) string {
	h := sha256.New()
	h.Write([]byte(entity))
	for _, f := range key {
		h.Write([]byte{0})
		h.Write([]byte(f.Field.Path))
		h.Write([]byte(f.Direction))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Encode projects the row's values at each sort-key field, in order, into
// an opaque token. Row keys are the dotted field paths, as produced by the
// executor adapters.
func Encode(entity string, key compile.SortKey, row map[string]any) (string, error) {
	values := make([]any, len(key))
	for i, f := range key {
		v, ok := row[f.Field.Path]
		if !ok {
			return "", fmt.Errorf("row is missing sort field %q", f.Field.Path)
		}
		values[i] = v
	}
	data, err := json.Marshal(payload{
		V:           version,
		Fingerprint: Fingerprint(entity, key),
		Values:      values,
	})
	if err != nil {
		return "", err
	}
	return tokenPrefix + ":" + base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode is the inverse of Encode. It returns the boundary value tuple,
// coerced to the sort-key field types, or InvalidCursorError when the
// token is malformed, was issued for a different entity/sort spec, or its
// values do not type-check against the current key.
func Decode(token, entity string, key compile.SortKey) ([]any, error) {
	prefix, encoded, found := strings.Cut(token, ":")
	if !found || prefix != tokenPrefix {
		return nil, &queryerr.InvalidCursorError{Reason: "unrecognized token format"}
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &queryerr.InvalidCursorError{Reason: "token is not valid base64"}
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &queryerr.InvalidCursorError{Reason: "token payload does not decode"}
	}
	if p.V != version {
		return nil, &queryerr.InvalidCursorError{Reason: fmt.Sprintf("unsupported cursor version %d", p.V)}
	}
	if p.Fingerprint != Fingerprint(entity, key) {
		return nil, &queryerr.InvalidCursorError{Reason: "cursor was issued for a different sort specification"}
	}
	if len(p.Values) != len(key) {
		return nil, &queryerr.InvalidCursorError{
			Reason: fmt.Sprintf("cursor carries %d values, sort key has %d fields", len(p.Values), len(key)),
		}
	}

	values := make([]any, len(key))
	for i, f := range key {
		v, err := f.Field.Type.Coerce(p.Values[i])
		if err != nil {
			return nil, &queryerr.InvalidCursorError{
				Reason: fmt.Sprintf("value for %q does not match its type: %v", f.Field.Path, err),
			}
		}
		values[i] = v
	}
	return values, nil
}
