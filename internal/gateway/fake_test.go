package gateway

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bookletku/internal/platform"
	"bookletku/internal/session"
)

func ptr[T any](v T) *T { return &v }

// fakeTables is an in-memory platform. Calls made with rejectToken (or any
// token when rejectAll is set) fail with ErrTokenExpired.
type fakeTables struct {
	mu     sync.Mutex
	items  []platform.ItemRow
	store  *platform.StoreRow
	orders []platform.OrderRow
	avatar map[string]string
	nextID int

	calls  map[string]int
	tokens map[string][]string

	rejectToken string
	rejectAll   bool
	failRank    map[string]error
	failList    error

	rankEntered chan struct{}
	rankGate    chan struct{}
}

func newFakeTables() *fakeTables {
	return &fakeTables{
		avatar:   make(map[string]string),
		calls:    make(map[string]int),
		tokens:   make(map[string][]string),
		failRank: make(map[string]error),
	}
}

func (f *fakeTables) check(ctx context.Context, op string) error {
	token := platform.AccessToken(ctx)
	f.calls[op]++
	f.tokens[op] = append(f.tokens[op], token)
	if token != "" && (f.rejectAll || token == f.rejectToken) {
		return platform.ErrTokenExpired
	}
	return nil
}

func (f *fakeTables) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeTables) seed(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range names {
		f.nextID++
		f.items = append(f.items, platform.ItemRow{
			ID:        fmt.Sprintf("item-%d", f.nextID),
			StoreID:   DEFAULT_STORE_ID,
			Name:      name,
			Price:     decimal.NewFromInt(10000),
			SortOrder: ptr(len(f.items)),
		})
	}
}

func (f *fakeTables) ranks() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.items))
	for _, row := range f.items {
		if row.SortOrder != nil {
			out[row.ID] = *row.SortOrder
		}
	}
	return out
}

func (f *fakeTables) ListItems(ctx context.Context, storeID string) ([]platform.ItemRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, "ListItems"); err != nil {
		return nil, err
	}
	if f.failList != nil {
		return nil, f.failList
	}
	rows := make([]platform.ItemRow, 0, len(f.items))
	for _, row := range f.items {
		if row.StoreID == storeID {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rank(rows[i]) < rank(rows[j])
	})
	return rows, nil
}

func rank(row platform.ItemRow) int {
	if row.SortOrder == nil {
		return 0
	}
	return *row.SortOrder
}

func (f *fakeTables) InsertItem(ctx context.Context, storeID string, fields platform.ItemFields, r int) (platform.ItemRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, "InsertItem"); err != nil {
		return platform.ItemRow{}, err
	}
	f.nextID++
	row := platform.ItemRow{
		ID:          fmt.Sprintf("item-%d", f.nextID),
		StoreID:     storeID,
		Name:        fields.Name,
		Price:       fields.Price,
		Description: ptr(fields.Description),
		Category:    ptr(fields.Category),
		Photo:       ptr(fields.Photo),
		Badge:       ptr(fields.Badge),
		Views:       ptr(int64(0)),
		SortOrder:   ptr(r),
	}
	f.items = append(f.items, row)
	return row, nil
}

func (f *fakeTables) find(id string) int {
	for i, row := range f.items {
		if row.ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeTables) UpdateItem(ctx context.Context, id string, fields platform.ItemFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, "UpdateItem"); err != nil {
		return err
	}
	i := f.find(id)
	if i < 0 {
		return platform.ErrNotFound
	}
	f.items[i].Name = fields.Name
	f.items[i].Price = fields.Price
	f.items[i].Description = ptr(fields.Description)
	f.items[i].Category = ptr(fields.Category)
	f.items[i].Photo = ptr(fields.Photo)
	f.items[i].Badge = ptr(fields.Badge)
	return nil
}

func (f *fakeTables) UpdateItemRank(ctx context.Context, id string, r int) error {
	if f.rankGate != nil {
		f.rankEntered <- struct{}{}
		<-f.rankGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, "UpdateItemRank"); err != nil {
		return err
	}
	if err := f.failRank[id]; err != nil {
		return err
	}
	i := f.find(id)
	if i < 0 {
		return platform.ErrNotFound
	}
	f.items[i].SortOrder = ptr(r)
	return nil
}

func (f *fakeTables) IncrementViews(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, "IncrementViews"); err != nil {
		return err
	}
	i := f.find(id)
	if i < 0 {
		return platform.ErrNotFound
	}
	var views int64
	if f.items[i].Views != nil {
		views = *f.items[i].Views
	}
	f.items[i].Views = ptr(views + 1)
	return nil
}

func (f *fakeTables) DeleteItem(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, "DeleteItem"); err != nil {
		return err
	}
	i := f.find(id)
	if i < 0 {
		return platform.ErrNotFound
	}
	f.items = append(f.items[:i], f.items[i+1:]...)
	return nil
}

func (f *fakeTables) GetStore(ctx context.Context, id string) (platform.StoreRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, "GetStore"); err != nil {
		return platform.StoreRow{}, err
	}
	if f.store == nil || f.store.ID != id {
		return platform.StoreRow{}, platform.ErrNotFound
	}
	return *f.store, nil
}

func (f *fakeTables) UpsertStore(ctx context.Context, row platform.StoreRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, "UpsertStore"); err != nil {
		return err
	}
	f.store = &row
	return nil
}

func (f *fakeTables) InsertOrder(ctx context.Context, row platform.OrderRow) (platform.OrderRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, "InsertOrder"); err != nil {
		return platform.OrderRow{}, err
	}
	row.ID = fmt.Sprintf("order-%d", len(f.orders)+1)
	f.orders = append(f.orders, row)
	return row, nil
}

func (f *fakeTables) GetProfile(ctx context.Context, userID string) (platform.ProfileRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, "GetProfile"); err != nil {
		return platform.ProfileRow{}, err
	}
	url, ok := f.avatar[userID]
	if !ok {
		return platform.ProfileRow{}, platform.ErrNotFound
	}
	return platform.ProfileRow{ID: userID, Role: platform.RoleUser, AvatarURL: url}, nil
}

func (f *fakeTables) UpsertProfile(ctx context.Context, row platform.ProfileRow) error {
	return nil
}

func (f *fakeTables) UpdateProfileAvatar(ctx context.Context, userID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ctx, "UpdateProfileAvatar"); err != nil {
		return err
	}
	f.avatar[userID] = url
	return nil
}

// batchTables adds the atomic rank write.
type batchTables struct {
	*fakeTables
}

func (b batchTables) UpdateItemRanks(ctx context.Context, ranks []platform.RankUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(ctx, "UpdateItemRanks"); err != nil {
		return err
	}
	for _, r := range ranks {
		i := b.find(r.ID)
		if i < 0 {
			return platform.ErrNotFound
		}
		b.items[i].SortOrder = ptr(r.Rank)
	}
	return nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *fakeStorage) Upload(ctx context.Context, name, contentType string, body io.Reader, upsert bool) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	if _, ok := s.objects[name]; ok && !upsert {
		return platform.ErrObjectExists
	}
	s.objects[name] = data
	return nil
}

func (s *fakeStorage) PublicURL(name string) string {
	return "http://cdn.test/storage/v1/object/public/bookletku/" + name
}

type fakeSubscription struct {
	ch     chan platform.ChangeEvent
	mu     sync.Mutex
	closed bool
}

func (s *fakeSubscription) Events() <-chan platform.ChangeEvent { return s.ch }

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

func (s *fakeSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeFeed struct {
	sub    *fakeSubscription
	tables []string
	err    error
}

func (f *fakeFeed) Subscribe(ctx context.Context, tables ...string) (platform.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tables = tables
	f.sub = &fakeSubscription{ch: make(chan platform.ChangeEvent, 4)}
	return f.sub, nil
}

// fakeSessions hands out token and swaps it for "fresh" on refresh.
type fakeSessions struct {
	mu           sync.Mutex
	token        string
	refreshErr   error
	refreshes    int
	signOuts     int
	events       chan session.Event
	unsubscribed bool
}

func newFakeSessions(token string) *fakeSessions {
	return &fakeSessions{token: token, events: make(chan session.Event, 4)}
}

func (s *fakeSessions) Context(ctx context.Context) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return platform.WithAccessToken(ctx, s.token)
}

func (s *fakeSessions) Refresh(ctx context.Context, stale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	if s.refreshErr != nil {
		return s.refreshErr
	}
	s.token = "fresh"
	return nil
}

func (s *fakeSessions) LocalSignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signOuts++
	s.token = ""
}

func (s *fakeSessions) Subscribe() (<-chan session.Event, func()) {
	return s.events, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unsubscribed = true
	}
}

func (s *fakeSessions) stats() (refreshes, signOuts int, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes, s.signOuts, s.token
}

type harness struct {
	gw       *Gateway
	tables   *fakeTables
	storage  *fakeStorage
	feed     *fakeFeed
	sessions *fakeSessions
}

func openHarness(t *testing.T, tables platform.Tables, ft *fakeTables, cfg Config) *harness {
	t.Helper()
	h := &harness{
		tables:   ft,
		storage:  &fakeStorage{},
		feed:     &fakeFeed{},
		sessions: newFakeSessions("admin-token"),
	}
	gw, err := Open(context.Background(), Deps{
		Tables:   tables,
		Storage:  h.storage,
		Feed:     h.feed,
		Sessions: h.sessions,
	}, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { gw.Close() })
	h.gw = gw
	return h
}

func newHarness(t *testing.T, names ...string) *harness {
	t.Helper()
	ft := newFakeTables()
	ft.seed(names...)
	return openHarness(t, ft, ft, Config{})
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
