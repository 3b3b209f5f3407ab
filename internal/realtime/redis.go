package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/ids"
)

const pingInterval = 250 * time.Millisecond

// RedisDB stores the tree in Redis. Each "collection/id" subtree is one JSON
// document, every collection keeps a set of its ids, and child events fan
// out over pub/sub so every server process sees them.
type RedisDB struct {
	client *redis.Client
	prefix string
	clock  clock.Clock
}

// NewRedisDB creates a tree over client. prefix namespaces every key.
func NewRedisDB(client *redis.Client, prefix string, c clock.Clock) *RedisDB {
	if c == nil {
		c = clock.Real()
	}
	return &RedisDB{client: client, prefix: prefix, clock: c}
}

func (db *RedisDB) docKey(collection, id string) string {
	return db.prefix + "doc:" + collection + "/" + id
}

func (db *RedisDB) indexKey(collection string) string {
	return db.prefix + "idx:" + collection
}

func (db *RedisDB) channel(path string) string {
	return db.prefix + "evt:" + path
}

// now prefers the Redis server clock so timestamps agree across processes.
func (db *RedisDB) now(ctx context.Context) int64 {
	t, err := db.client.Time(ctx).Result()
	if err != nil {
		return clock.Millis(db.clock.Now())
	}
	return t.UnixMilli()
}

func (db *RedisDB) GenerateKey() string {
	return ids.PushKey(db.clock.Now())
}

func (db *RedisDB) WaitConnected(ctx context.Context) error {
	for {
		if err := db.client.Ping(ctx).Err(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-db.clock.After(pingInterval):
		}
	}
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (db *RedisDB) readDoc(ctx context.Context, cmd stringGetter, collection, id string) (any, bool, error) {
	raw, err := cmd.Get(ctx, db.docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := decodeTree(raw, 0)
	if err != nil {
		return nil, false, err
	}
	return v, v != nil, nil
}

func (db *RedisDB) readCollection(ctx context.Context, collection string) (map[string]any, error) {
	members, err := db.client.SMembers(ctx, db.indexKey(collection)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	sort.Strings(members)

	keys := make([]string, len(members))
	for i, id := range members {
		keys[i] = db.docKey(collection, id)
	}
	vals, err := db.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(members))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		doc, err := decodeTree([]byte(s), 0)
		if err != nil || doc == nil {
			continue
		}
		out[members[i]] = doc
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (db *RedisDB) Get(ctx context.Context, path string) (json.RawMessage, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	return db.get(ctx, segs)
}

func (db *RedisDB) get(ctx context.Context, segs []string) (json.RawMessage, error) {
	if len(segs) == 1 {
		coll, err := db.readCollection(ctx, segs[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if coll == nil {
			return nil, nil
		}
		return encode(coll)
	}

	doc, ok, err := db.readDoc(ctx, db.client, segs[0], segs[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return nil, nil
	}
	v, ok := getAt(doc, segs[2:])
	if !ok {
		return nil, nil
	}
	return encode(v)
}

func (db *RedisDB) Set(ctx context.Context, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	return db.write(ctx, [][]string{segs}, []any{value})
}

func (db *RedisDB) Update(ctx context.Context, path string, fields map[string]any) error {
	base, err := splitPath(path)
	if err != nil {
		return err
	}
	paths, values, err := updatePaths(base, fields)
	if err != nil {
		return err
	}
	return db.write(ctx, paths, values)
}

func (db *RedisDB) Remove(ctx context.Context, path string) error {
	return db.Set(ctx, path, nil)
}

type docWrite struct {
	segs  []string
	value any
}

func (db *RedisDB) write(ctx context.Context, paths [][]string, values []any) error {
	now := db.now(ctx)

	refs := affectedChildren(paths)
	existed := make([]bool, len(refs))
	for i, ref := range refs {
		before, err := db.get(ctx, ref.path())
		if err != nil {
			return err
		}
		existed[i] = before != nil
	}

	docs := make(map[[2]string][]docWrite)
	var order [][2]string
	for i, segs := range paths {
		v, err := normalize(values[i], now)
		if err != nil {
			return err
		}
		if len(segs) == 1 {
			if err := db.replaceCollection(ctx, segs[0], v); err != nil {
				return err
			}
			continue
		}
		id := [2]string{segs[0], segs[1]}
		if _, ok := docs[id]; !ok {
			order = append(order, id)
		}
		docs[id] = append(docs[id], docWrite{segs: segs[1:], value: v})
	}

	for _, id := range order {
		if err := db.writeDoc(ctx, id[0], id[1], docs[id]); err != nil {
			return err
		}
	}

	for i, ref := range refs {
		after, err := db.get(ctx, ref.path())
		if err != nil {
			return err
		}
		typ, ok := classify(existed[i], after)
		if !ok {
			continue
		}
		payload, err := json.Marshal(Event{Type: typ, Key: ref.key, Value: after})
		if err != nil {
			return err
		}
		if err := db.client.Publish(ctx, db.channel(joinPath(ref.parent)), payload).Err(); err != nil {
			return fmt.Errorf("%w: publish: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (db *RedisDB) writeDoc(ctx context.Context, collection, id string, writes []docWrite) error {
	key := db.docKey(collection, id)
	err := db.client.Watch(ctx, func(tx *redis.Tx) error {
		tree := map[string]any{}
		current, ok, err := db.readDoc(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		if ok {
			tree[id] = current
		}
		for _, w := range writes {
			setAt(tree, w.segs, w.value)
		}

		doc, keep := tree[id]
		var raw []byte
		if keep {
			if raw, err = json.Marshal(doc); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if keep {
				pipe.Set(ctx, key, raw, 0)
				pipe.SAdd(ctx, db.indexKey(collection), id)
			} else {
				pipe.Del(ctx, key)
				pipe.SRem(ctx, db.indexKey(collection), id)
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("%w: write %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	return nil
}

func (db *RedisDB) replaceCollection(ctx context.Context, collection string, value any) error {
	members, err := db.client.SMembers(ctx, db.indexKey(collection)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	children, _ := value.(map[string]any)

	_, err = db.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range members {
			pipe.Del(ctx, db.docKey(collection, id))
		}
		pipe.Del(ctx, db.indexKey(collection))
		for id, doc := range children {
			raw, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			pipe.Set(ctx, db.docKey(collection, id), raw, 0)
			pipe.SAdd(ctx, db.indexKey(collection), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrUnavailable, collection, err)
	}
	return nil
}

func (db *RedisDB) Listen(ctx context.Context, path string, h Handler) (UnsubscribeFunc, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	name := joinPath(segs)

	ps := db.client.Subscribe(ctx, db.channel(name))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrUnavailable, name, err)
	}

	l := newListener(name, h)

	current, err := db.get(ctx, segs)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}
	if current != nil {
		var children map[string]json.RawMessage
		if json.Unmarshal(current, &children) == nil {
			keys := make([]string, 0, len(children))
			for k := range children {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				l.enqueue(Event{Type: ChildAdded, Key: k, Value: children[k]})
			}
		}
	}

	go l.run()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			l.stop()
			_ = ps.Close()
		})
	}

	go func() {
		ch := ps.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				l.enqueue(ev)
			case <-l.done:
				return
			case <-ctx.Done():
				unsubscribe()
				return
			}
		}
	}()

	return unsubscribe, nil
}

func (db *RedisDB) Close() error {
	return db.client.Close()
}
