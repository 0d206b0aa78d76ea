// Package gateway implements the store data gateway: it mirrors menu items
// and store settings from the platform, performs every write on the UI's
// behalf and keeps the mirrors fresh from the change feed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bookletku/internal/catalog"
	"bookletku/internal/platform"
	"bookletku/internal/session"
)

const DEFAULT_STORE_ID = "00000000-0000-0000-0000-000000000001"

var (
	ErrAuthExpired    = errors.New("session expired")
	ErrNotPermutation = errors.New("reorder list is not a permutation of the current items")
	ErrClosed         = errors.New("gateway closed")
)

// CallSessions supplies and renews the credentials of a call.
type CallSessions interface {
	Context(ctx context.Context) context.Context
	Refresh(ctx context.Context, staleToken string) error
	LocalSignOut()
}

// Sessions is the part of the session manager the gateway depends on.
type Sessions interface {
	CallSessions
	Subscribe() (<-chan session.Event, func())
}

type callerKey struct{}

// WithCaller makes calls made with ctx use s instead of the gateway's own
// session. A host serving many users attaches each request's credentials
// this way.
func WithCaller(ctx context.Context, s CallSessions) context.Context {
	return context.WithValue(ctx, callerKey{}, s)
}

func (g *Gateway) sessionsFor(ctx context.Context) CallSessions {
	if s, ok := ctx.Value(callerKey{}).(CallSessions); ok && s != nil {
		return s
	}
	return g.deps.Sessions
}

type Deps struct {
	Tables   platform.Tables
	Storage  platform.Storage
	Feed     platform.Feed
	Sessions Sessions
}

type Config struct {
	StoreID string
	// ReorderSettle keeps the reorder window open after the last rank write.
	ReorderSettle time.Duration
	// FetchTimeout bounds refetches triggered by notifications.
	FetchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.StoreID == "" {
		c.StoreID = DEFAULT_STORE_ID
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	return c
}

type Gateway struct {
	cfg  Config
	deps Deps

	mu    sync.RWMutex
	state State
	// reorderGen is bumped by every reorder; fetches started under an older
	// generation are discarded.
	reorderGen  uint64
	inflight    int
	missedFetch bool

	writeMu sync.Mutex

	listenerMu    sync.Mutex
	listeners     map[int]chan State
	nextListener  int
	lastPublished uint64

	feedSub   platform.Subscription
	authUnsub func()
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newGateway(deps Deps, cfg Config) *Gateway {
	return &Gateway{
		cfg:       cfg.withDefaults(),
		deps:      deps,
		state:     State{Status: StatusLoading, Items: []catalog.MenuItem{}, CustomCategories: []string{}},
		listeners: make(map[int]chan State),
		done:      make(chan struct{}),
	}
}

// Open loads both mirrors, then holds the change-feed and auth subscriptions
// until Close.
func Open(ctx context.Context, deps Deps, cfg Config) (*Gateway, error) {
	g := newGateway(deps, cfg)

	var eg errgroup.Group
	eg.Go(func() error {
		g.FetchItems(ctx)
		return nil
	})
	eg.Go(func() error {
		g.FetchSettings(ctx)
		return nil
	})
	_ = eg.Wait()

	g.dispatch(loadSettled{})

	sub, err := deps.Feed.Subscribe(ctx, platform.TableMenuItems, platform.TableStores)
	if err != nil {
		return nil, fmt.Errorf("subscribe to change feed: %w", err)
	}
	authEvents, authUnsub := deps.Sessions.Subscribe()

	g.feedSub = sub
	g.authUnsub = authUnsub

	g.wg.Add(1)
	go g.listen(sub.Events(), authEvents)

	log.Printf("gateway: ready with %d items", len(g.Snapshot().Items))
	return g, nil
}

// Close releases the subscriptions and stops the notification loop. It is
// safe to call more than once.
func (g *Gateway) Close() error {
	var err error
	g.closeOnce.Do(func() {
		close(g.done)
		if g.feedSub != nil {
			err = g.feedSub.Close()
		}
		if g.authUnsub != nil {
			g.authUnsub()
		}
		g.wg.Wait()

		g.listenerMu.Lock()
		for id, ch := range g.listeners {
			close(ch)
			delete(g.listeners, id)
		}
		g.listenerMu.Unlock()
	})
	return err
}

func (g *Gateway) closed() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Snapshot returns a copy of the current state.
func (g *Gateway) Snapshot() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.clone()
}

// Subscribe delivers the latest snapshot after every transition. Only the
// newest snapshot is kept for a slow reader.
func (g *Gateway) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	ch <- g.Snapshot()

	g.listenerMu.Lock()
	if g.closed() {
		g.listenerMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := g.nextListener
	g.nextListener++
	g.listeners[id] = ch
	g.listenerMu.Unlock()

	return ch, func() {
		g.listenerMu.Lock()
		defer g.listenerMu.Unlock()
		if _, ok := g.listeners[id]; ok {
			delete(g.listeners, id)
			close(ch)
		}
	}
}

// --- Internals ---

func (g *Gateway) dispatch(a action) {
	g.mu.Lock()
	g.state = reduce(g.state, a)
	snap := g.state.clone()
	g.mu.Unlock()
	g.publish(snap)
}

// dispatchLocked applies a while g.mu is already held and returns the
// snapshot to publish once the lock is released.
func (g *Gateway) dispatchLocked(a action) State {
	g.state = reduce(g.state, a)
	return g.state.clone()
}

func (g *Gateway) publish(snap State) {
	g.listenerMu.Lock()
	defer g.listenerMu.Unlock()
	if snap.Version <= g.lastPublished {
		return
	}
	g.lastPublished = snap.Version
	for _, ch := range g.listeners {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (g *Gateway) listen(feed <-chan platform.ChangeEvent, auth <-chan session.Event) {
	defer g.wg.Done()
	for {
		select {
		case <-g.done:
			return
		case ev, ok := <-feed:
			if !ok {
				feed = nil
				log.Println("gateway: change feed closed")
				continue
			}
			switch ev.Table {
			case platform.TableMenuItems:
				g.handle(itemsChanged)
			case platform.TableStores:
				g.handle(settingsChanged)
			}
		case ev, ok := <-auth:
			if !ok {
				auth = nil
				continue
			}
			switch ev.Type {
			case session.EventSignedIn, session.EventTokenRefreshed, session.EventSignedOut:
				g.handle(authChanged)
			}
		}
	}
}

func (g *Gateway) handle(n notification) {
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.FetchTimeout)
	defer cancel()

	items, settings := refetchFor(n)
	if items {
		g.FetchItems(ctx)
	}
	if settings {
		g.FetchSettings(ctx)
	}
}
