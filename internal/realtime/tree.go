package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if s == "" || strings.ContainsAny(s, ".#$[]") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

func joinPath(segs []string) string {
	return strings.Join(segs, "/")
}

// normalize turns value into a plain JSON tree, resolving server timestamps
// and dropping empty objects.
func normalize(value any, now int64) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return decodeTree(raw, now)
}

func decodeTree(raw []byte, now int64) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return resolve(decoded, json.Number(strconv.FormatInt(now, 10))), nil
}

func resolve(v any, now json.Number) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			if sv, ok := t[".sv"]; ok && sv == "timestamp" {
				return now
			}
		}
		for k, child := range t {
			r := resolve(child, now)
			if r == nil {
				delete(t, k)
				continue
			}
			t[k] = r
		}
		if len(t) == 0 {
			return nil
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = resolve(child, now)
		}
		return t
	default:
		return v
	}
}

func getAt(node any, segs []string) (any, bool) {
	cur := node
	for _, s := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[s]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setAt writes value below node, creating intermediate objects. A nil value
// deletes the entry and prunes parents left empty.
func setAt(node map[string]any, segs []string, value any) {
	key := segs[0]
	if len(segs) == 1 {
		if value == nil {
			delete(node, key)
		} else {
			node[key] = value
		}
		return
	}
	child, ok := node[key].(map[string]any)
	if !ok {
		if value == nil {
			return
		}
		child = map[string]any{}
		node[key] = child
	}
	setAt(child, segs[1:], value)
	if len(child) == 0 {
		delete(node, key)
	}
}

func encode(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func sortedKeys(v any) []string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// childRef identifies a direct child of a listened path.
type childRef struct {
	parent []string
	key    string
}

func (c childRef) path() []string {
	out := make([]string, 0, len(c.parent)+1)
	out = append(out, c.parent...)
	return append(out, c.key)
}

// affectedChildren lists, for every written path, each ancestor and the
// child of that ancestor on the way down.
func affectedChildren(written [][]string) []childRef {
	seen := make(map[string]bool)
	var refs []childRef
	for _, segs := range written {
		for k := 1; k < len(segs); k++ {
			id := joinPath(segs[:k+1])
			if seen[id] {
				continue
			}
			seen[id] = true
			refs = append(refs, childRef{parent: segs[:k], key: segs[k]})
		}
	}
	return refs
}

// updatePaths expands Update fields into absolute paths.
func updatePaths(base []string, fields map[string]any) ([][]string, []any, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([][]string, 0, len(names))
	values := make([]any, 0, len(names))
	for _, name := range names {
		rel, err := splitPath(name)
		if err != nil {
			return nil, nil, err
		}
		full := make([]string, 0, len(base)+len(rel))
		full = append(full, base...)
		full = append(full, rel...)
		paths = append(paths, full)
		values = append(values, fields[name])
	}
	return paths, values, nil
}

func classify(existed bool, after json.RawMessage) (EventType, bool) {
	switch {
	case !existed && after != nil:
		return ChildAdded, true
	case existed && after != nil:
		return ChildChanged, true
	case existed && after == nil:
		return ChildRemoved, true
	default:
		return "", false
	}
}
