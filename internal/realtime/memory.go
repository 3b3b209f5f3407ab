package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/ids"
)

// MemoryDB is an in-process tree. SetOnline(false) makes every call fail
// with ErrUnavailable, which is how tests take the remote path down.
type MemoryDB struct {
	clock clock.Clock

	mu        sync.Mutex
	root      map[string]any
	listeners map[int]*listener
	nextID    int
	online    bool
	onlineCh  chan struct{}
}

// NewMemoryDB creates an empty, online tree.
func NewMemoryDB(c clock.Clock) *MemoryDB {
	if c == nil {
		c = clock.Real()
	}
	ch := make(chan struct{})
	close(ch)
	return &MemoryDB{
		clock:     c,
		root:      map[string]any{},
		listeners: map[int]*listener{},
		online:    true,
		onlineCh:  ch,
	}
}

// SetOnline toggles reachability.
func (db *MemoryDB) SetOnline(online bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if online == db.online {
		return
	}
	db.online = online
	if online {
		close(db.onlineCh)
	} else {
		db.onlineCh = make(chan struct{})
	}
}

func (db *MemoryDB) GenerateKey() string {
	return ids.PushKey(db.clock.Now())
}

func (db *MemoryDB) WaitConnected(ctx context.Context) error {
	db.mu.Lock()
	ch := db.onlineCh
	db.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (db *MemoryDB) Get(ctx context.Context, path string) (json.RawMessage, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.online {
		return nil, ErrUnavailable
	}
	v, ok := getAt(db.root, segs)
	if !ok {
		return nil, nil
	}
	return encode(v)
}

func (db *MemoryDB) Set(ctx context.Context, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	return db.write([][]string{segs}, []any{value})
}

func (db *MemoryDB) Update(ctx context.Context, path string, fields map[string]any) error {
	base, err := splitPath(path)
	if err != nil {
		return err
	}
	paths, values, err := updatePaths(base, fields)
	if err != nil {
		return err
	}
	return db.write(paths, values)
}

func (db *MemoryDB) Remove(ctx context.Context, path string) error {
	return db.Set(ctx, path, nil)
}

func (db *MemoryDB) write(paths [][]string, values []any) error {
	now := clock.Millis(db.clock.Now())
	resolved := make([]any, len(values))
	for i, v := range values {
		n, err := normalize(v, now)
		if err != nil {
			return err
		}
		resolved[i] = n
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.online {
		return ErrUnavailable
	}

	refs := affectedChildren(paths)
	existed := make([]bool, len(refs))
	for i, ref := range refs {
		_, existed[i] = getAt(db.root, ref.path())
	}

	for i, segs := range paths {
		setAt(db.root, segs, resolved[i])
	}

	for i, ref := range refs {
		after, _ := getAt(db.root, ref.path())
		raw, err := encode(after)
		if err != nil {
			return err
		}
		typ, ok := classify(existed[i], raw)
		if !ok {
			continue
		}
		parent := joinPath(ref.parent)
		for _, l := range db.listeners {
			if l.path == parent {
				l.enqueue(Event{Type: typ, Key: ref.key, Value: raw})
			}
		}
	}
	return nil
}

func (db *MemoryDB) Listen(ctx context.Context, path string, h Handler) (UnsubscribeFunc, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	if !db.online {
		db.mu.Unlock()
		return nil, ErrUnavailable
	}
	id := db.nextID
	db.nextID++
	l := newListener(joinPath(segs), h)
	db.listeners[id] = l

	if current, ok := getAt(db.root, segs); ok {
		m, _ := current.(map[string]any)
		for _, k := range sortedKeys(current) {
			raw, err := encode(m[k])
			if err != nil {
				continue
			}
			l.enqueue(Event{Type: ChildAdded, Key: k, Value: raw})
		}
	}
	db.mu.Unlock()

	go l.run()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			db.mu.Lock()
			delete(db.listeners, id)
			db.mu.Unlock()
			l.stop()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-l.done:
		}
	}()
	return unsubscribe, nil
}

func (db *MemoryDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for id, l := range db.listeners {
		l.stop()
		delete(db.listeners, id)
	}
	return nil
}

// listener delivers queued events on its own goroutine so handlers may call
// back into the database.
type listener struct {
	path    string
	handler Handler

	mu    sync.Mutex
	queue []Event
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newListener(path string, h Handler) *listener {
	return &listener{
		path:    path,
		handler: h,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (l *listener) enqueue(ev Event) {
	l.mu.Lock()
	l.queue = append(l.queue, ev)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) stop() {
	l.once.Do(func() { close(l.done) })
}

func (l *listener) run() {
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			ev := l.queue[0]
			l.queue = l.queue[1:]
			l.mu.Unlock()

			select {
			case <-l.done:
				return
			default:
			}
			l.handler(ev)
		}
	}
}
