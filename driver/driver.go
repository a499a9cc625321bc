// Package driver provides storage backends implementing the key/value
// contract the core consumes, plus shared helpers that emulate optional
// capabilities (batch writes, sets) on drivers that lack them.
package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mindscape-ai/mindscape/domain"
)

// MatchPattern reports whether key matches a glob pattern where '*' matches
// any run of characters, including namespace separators.
func MatchPattern(pattern, key string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}
	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]
	last := len(parts) - 1
	for i := 1; i < last; i++ {
		idx := strings.Index(key, parts[i])
		if idx < 0 {
			return false
		}
		key = key[idx+len(parts[i]):]
	}
	return strings.HasSuffix(key, parts[last])
}

// PatternToLike converts a glob pattern to a SQL LIKE expression.
func PatternToLike(pattern string) string {
	s := strings.ReplaceAll(pattern, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return strings.ReplaceAll(s, "*", "%")
}

// WriteMulti writes items through the driver's batch capability when present,
// falling back to serial writes.
func WriteMulti(ctx context.Context, d domain.Driver, items []domain.Item) error {
	if b, ok := d.(domain.BatchDriver); ok {
		return b.WriteMulti(ctx, items)
	}
	for _, it := range items {
		if err := d.Write(ctx, it.Key, it.Value, it.Meta); err != nil {
			return fmt.Errorf("write %s: %w", it.Key, err)
		}
	}
	return nil
}

// ReadMulti reads keys through the batch capability when present. Missing
// keys are simply absent from the result map.
func ReadMulti(ctx context.Context, d domain.Driver, keys []string) (map[string][]byte, error) {
	if b, ok := d.(domain.BatchDriver); ok {
		return b.ReadMulti(ctx, keys)
	}
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, err := d.Read(ctx, k)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// AddToSet adds a member, using native sets when the driver has them and a
// JSON-array emulation otherwise.
func AddToSet(ctx context.Context, d domain.Driver, key, member string, meta domain.WriteMeta) error {
	if s, ok := d.(domain.SetDriver); ok {
		return s.AddToSet(ctx, key, member)
	}
	members, err := emulatedMembers(ctx, d, key)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m == member {
			return nil
		}
	}
	members = append(members, member)
	sort.Strings(members)
	raw, err := json.Marshal(members)
	if err != nil {
		return err
	}
	return d.Write(ctx, key, raw, meta)
}

// RemoveFromSet removes a member through either path.
func RemoveFromSet(ctx context.Context, d domain.Driver, key, member string, meta domain.WriteMeta) error {
	if s, ok := d.(domain.SetDriver); ok {
		return s.RemoveFromSet(ctx, key, member)
	}
	members, err := emulatedMembers(ctx, d, key)
	if err != nil {
		return err
	}
	kept := members[:0]
	for _, m := range members {
		if m != member {
			kept = append(kept, m)
		}
	}
	raw, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	return d.Write(ctx, key, raw, meta)
}

// GetSetMembers returns the members through either path; a missing key is an
// empty set.
func GetSetMembers(ctx context.Context, d domain.Driver, key string) ([]string, error) {
	if s, ok := d.(domain.SetDriver); ok {
		return s.GetSetMembers(ctx, key)
	}
	return emulatedMembers(ctx, d, key)
}

// IsSetMember checks membership through either path.
func IsSetMember(ctx context.Context, d domain.Driver, key, member string) (bool, error) {
	if s, ok := d.(domain.SetDriver); ok {
		return s.IsSetMember(ctx, key, member)
	}
	members, err := emulatedMembers(ctx, d, key)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == member {
			return true, nil
		}
	}
	return false, nil
}

func emulatedMembers(ctx context.Context, d domain.Driver, key string) ([]string, error) {
	raw, err := d.Read(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var members []string
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, fmt.Errorf("decode set %s: %w", key, err)
	}
	return members, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
