package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	mailerrors "github.com/customeros/inboxsync/internal/errors"
	"github.com/customeros/inboxsync/internal/models"
)

// fakeServer is an in-memory mailbox reachable through fakeConn.
type fakeServer struct {
	mu         sync.Mutex
	folders     map[string]map[uint32][]byte
	uidValidity map[string]uint32
	connectErr  []error
	watchErr    []error
	fetchErr    map[uint32][]error
	fetches     map[uint32]int
	listCalls   map[string]int
	newMail     chan struct{}

	connects      atomic.Int32
	watching      atomic.Int32
	watchCanceled atomic.Int32
}

func newFakeServer(folders ...string) *fakeServer {
	s := &fakeServer{
		folders:     make(map[string]map[uint32][]byte),
		uidValidity: make(map[string]uint32),
		fetchErr:    make(map[uint32][]error),
		fetches:     make(map[uint32]int),
		listCalls:   make(map[string]int),
		newMail:     make(chan struct{}, 1),
	}
	for _, f := range folders {
		s.folders[f] = make(map[uint32][]byte)
	}
	return s
}

func (s *fakeServer) put(folder string, uid uint32, raw string) {
	s.mu.Lock()
	s.folders[folder][uid] = []byte(raw)
	s.mu.Unlock()
}

// deliver adds a message and wakes a watcher.
func (s *fakeServer) deliver(folder string, uid uint32, raw string) {
	s.put(folder, uid, raw)
	select {
	case s.newMail <- struct{}{}:
	default:
	}
}

// renumber empties folder and assigns it a new UIDVALIDITY, as a server
// does when it rebuilds a mailbox.
func (s *fakeServer) renumber(folder string, uidValidity uint32) {
	s.mu.Lock()
	s.folders[folder] = make(map[uint32][]byte)
	s.uidValidity[folder] = uidValidity
	s.mu.Unlock()
}

func (s *fakeServer) setUidValidity(folder string, uidValidity uint32) {
	s.mu.Lock()
	s.uidValidity[folder] = uidValidity
	s.mu.Unlock()
}

// failFetch makes the next fetches of uid fail with errs, in order.
func (s *fakeServer) failFetch(uid uint32, errs ...error) {
	s.mu.Lock()
	s.fetchErr[uid] = append(s.fetchErr[uid], errs...)
	s.mu.Unlock()
}

func (s *fakeServer) fetchCount(uid uint32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[uid]
}

func (s *fakeServer) failConnect(errs ...error) {
	s.mu.Lock()
	s.connectErr = append(s.connectErr, errs...)
	s.mu.Unlock()
}

func (s *fakeServer) failNextWatch(err error) {
	s.mu.Lock()
	s.watchErr = append(s.watchErr, err)
	s.mu.Unlock()
}

func (s *fakeServer) lists(folder string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls[folder]
}

func (s *fakeServer) Connect(ctx context.Context, account *models.Account) (interfaces.MailConnection, error) {
	s.connects.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.connectErr) > 0 {
		err := s.connectErr[0]
		s.connectErr = s.connectErr[1:]
		return nil, err
	}
	return &fakeConn{server: s}, nil
}

type fakeConn struct {
	server *fakeServer
}

func (c *fakeConn) SelectFolder(_ context.Context, name string) (*interfaces.FolderHandle, error) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	msgs, ok := c.server.folders[name]
	if !ok {
		return nil, mailerrors.NewFolderError(name, fmt.Errorf("Mailbox doesn't exist: %s", name))
	}
	return &interfaces.FolderHandle{Name: name, Messages: uint32(len(msgs)), UidValidity: c.server.uidValidity[name]}, nil
}

func (c *fakeConn) ListNew(_ context.Context, folder *interfaces.FolderHandle, cursor uint32) ([]interfaces.MessageRef, error) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	c.server.listCalls[folder.Name]++

	var uids []uint32
	for uid := range c.server.folders[folder.Name] {
		if uid > cursor {
			uids = append(uids, uid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	refs := make([]interfaces.MessageRef, 0, len(uids))
	for _, uid := range uids {
		refs = append(refs, interfaces.MessageRef{Folder: folder.Name, UID: uid})
	}
	return refs, nil
}

func (c *fakeConn) FetchRaw(_ context.Context, ref interfaces.MessageRef) ([]byte, error) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	c.server.fetches[ref.UID]++
	if errs := c.server.fetchErr[ref.UID]; len(errs) > 0 {
		c.server.fetchErr[ref.UID] = errs[1:]
		return nil, errs[0]
	}
	raw, ok := c.server.folders[ref.Folder][ref.UID]
	if !ok {
		return nil, mailerrors.NewFetchError(ref.Folder, ref.UID, fmt.Errorf("no such message"))
	}
	return raw, nil
}

func (c *fakeConn) Watch(ctx context.Context, _ *interfaces.FolderHandle) error {
	c.server.mu.Lock()
	if len(c.server.watchErr) > 0 {
		err := c.server.watchErr[0]
		c.server.watchErr = c.server.watchErr[1:]
		c.server.mu.Unlock()
		return err
	}
	c.server.mu.Unlock()

	c.server.watching.Add(1)
	defer c.server.watching.Add(-1)
	select {
	case <-c.server.newMail:
		return nil
	case <-ctx.Done():
		c.server.watchCanceled.Add(1)
		return ctx.Err()
	}
}

func (c *fakeConn) Close() error { return nil }

// memoryCursors never lets a cursor move backwards and records every advance.
type memoryCursors struct {
	mu          sync.Mutex
	cursors     map[string]uint32
	uidValidity map[string]uint32
	advances    map[string][]uint32
	deleted     []string
}

func newMemoryCursors() *memoryCursors {
	return &memoryCursors{cursors: map[string]uint32{}, uidValidity: map[string]uint32{}, advances: map[string][]uint32{}}
}

func cursorKey(account, folder string) string { return account + "/" + folder }

func (m *memoryCursors) GetCursor(_ context.Context, accountID, folderName string) (*models.SyncCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cursorKey(accountID, folderName)
	return &models.SyncCursor{
		AccountID:   accountID,
		FolderName:  folderName,
		LastUID:     m.cursors[key],
		UidValidity: m.uidValidity[key],
	}, nil
}

func (m *memoryCursors) SetUidValidity(_ context.Context, accountID, folderName string, uidValidity uint32, resetUID bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cursorKey(accountID, folderName)
	m.uidValidity[key] = uidValidity
	if resetUID {
		m.cursors[key] = 0
	}
	return nil
}

func (m *memoryCursors) validity(account, folder string) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uidValidity[cursorKey(account, folder)]
}

func (m *memoryCursors) AdvanceCursor(_ context.Context, accountID, folderName string, uid uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cursorKey(accountID, folderName)
	m.advances[key] = append(m.advances[key], uid)
	if uid > m.cursors[key] {
		m.cursors[key] = uid
	}
	return nil
}

func (m *memoryCursors) GetAccountCursors(_ context.Context, accountID string) (map[string]*models.SyncCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := map[string]*models.SyncCursor{}
	for key, uid := range m.cursors {
		if folder, ok := strings.CutPrefix(key, accountID+"/"); ok {
			result[folder] = &models.SyncCursor{AccountID: accountID, FolderName: folder, LastUID: uid}
		}
	}
	return result, nil
}

func (m *memoryCursors) DeleteAccountCursors(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, accountID)
	for key := range m.cursors {
		if strings.HasPrefix(key, accountID+"/") {
			delete(m.cursors, key)
		}
	}
	return nil
}

func (m *memoryCursors) get(account, folder string) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[cursorKey(account, folder)]
}

// reset forces a re-fetch of everything in folder.
func (m *memoryCursors) reset(account, folder string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[cursorKey(account, folder)] = 0
}

func (m *memoryCursors) history(account, folder string) []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint32(nil), m.advances[cursorKey(account, folder)]...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []dto.NotificationEvent
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(_ context.Context, event dto.NotificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type recordingPublisher struct {
	mu     sync.Mutex
	fanout []interface{}
}

func (p *recordingPublisher) PublishFanoutEvent(_ context.Context, _ string, _ enum.EntityType, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fanout = append(p.fanout, message)
	return nil
}

func (p *recordingPublisher) PublishNotificationEvent(context.Context, string, interface{}) error {
	return nil
}

func (p *recordingPublisher) PublishSyncRequest(context.Context, string) error { return nil }

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) degraded() []dto.AccountDegraded {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result []dto.AccountDegraded
	for _, e := range p.fanout {
		if d, ok := e.(dto.AccountDegraded); ok {
			result = append(result, d)
		}
	}
	return result
}

func (p *recordingPublisher) indexed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.fanout {
		if _, ok := e.(dto.MessageIndexed); ok {
			n++
		}
	}
	return n
}

// panickyDecoder panics on its first call.
type panickyDecoder struct {
	interfaces.Decoder
	calls atomic.Int32
}

func (d *panickyDecoder) Decode(raw []byte, account, folder string, serverSeq uint32) *models.Message {
	if d.calls.Add(1) == 1 {
		panic("decoder exploded")
	}
	return d.Decoder.Decode(raw, account, folder, serverSeq)
}
