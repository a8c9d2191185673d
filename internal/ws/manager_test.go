package ws

import (
	"strconv"
	"sync"
	"testing"

	"github.com/ashureev/callprep/internal/store"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	mu     sync.Mutex
	closed []websocket.StatusCode
}

func (f *fakeConn) Close(code websocket.StatusCode, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, code)
	return nil
}

func (f *fakeConn) closes() []websocket.StatusCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func key(owner, session string) store.SessionKey {
	return store.SessionKey{OwnerID: owner, SessionID: session}
}

func TestConnectionManagerRegister(t *testing.T) {
	cm := NewConnectionManager()
	conn := &fakeConn{}

	cm.Register(key("owner", "tab-1"), conn)

	assert.Same(t, conn, cm.GetActive(key("owner", "tab-1")))
	assert.Nil(t, cm.GetActive(key("owner", "tab-2")))
	assert.Equal(t, 1, cm.Count())
}

func TestConnectionManagerReplaceClosesOld(t *testing.T) {
	cm := NewConnectionManager()
	old, fresh := &fakeConn{}, &fakeConn{}

	cm.Register(key("owner", "tab-1"), old)
	cm.Register(key("owner", "tab-1"), fresh)

	assert.Equal(t, []websocket.StatusCode{websocket.StatusNormalClosure}, old.closes())
	assert.Empty(t, fresh.closes())
	assert.Same(t, fresh, cm.GetActive(key("owner", "tab-1")))
}

func TestConnectionManagerUnregisterStale(t *testing.T) {
	cm := NewConnectionManager()
	old, fresh := &fakeConn{}, &fakeConn{}

	cm.Register(key("owner", "tab-1"), old)
	cm.Register(key("owner", "tab-1"), fresh)
	cm.Unregister(key("owner", "tab-1"), old)

	assert.Same(t, fresh, cm.GetActive(key("owner", "tab-1")))

	cm.Unregister(key("owner", "tab-1"), fresh)
	assert.Nil(t, cm.GetActive(key("owner", "tab-1")))
	assert.Equal(t, 0, cm.Count())
}

func TestConnectionManagerCloseSession(t *testing.T) {
	cm := NewConnectionManager()
	a, b := &fakeConn{}, &fakeConn{}
	cm.Register(key("owner", "tab-a"), a)
	cm.Register(key("owner", "tab-b"), b)

	cm.CloseSession(key("owner", "tab-a"))
	cm.CloseSession(key("nobody", "tab-a"))

	assert.Equal(t, []websocket.StatusCode{websocket.StatusGoingAway}, a.closes())
	assert.Empty(t, b.closes())
	assert.Nil(t, cm.GetActive(key("owner", "tab-a")))
	assert.Same(t, b, cm.GetActive(key("owner", "tab-b")))
}

func TestConnectionManagerConcurrentAccess(t *testing.T) {
	cm := NewConnectionManager()
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := range 500 {
			cm.Register(key("owner", "tab-"+strconv.Itoa(i)), &fakeConn{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 500 {
			cm.GetActive(key("owner", "tab-"+strconv.Itoa(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 500 {
			cm.CloseSession(key("owner", "tab-"+strconv.Itoa(i)))
		}
	}()

	wg.Wait()
}
