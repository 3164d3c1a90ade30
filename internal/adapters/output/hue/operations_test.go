package hue

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hue-rest-client/internal/adapters/input/simulator"
	"hue-rest-client/internal/domain/model"
)

// fakeClock is shared between the test goroutine and the simulator handlers.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newSimClient(t *testing.T, sim *simulator.Server, username string) *Client {
	t.Helper()
	host, port := sim.Endpoint()
	return newTestClient(t, host, port, username)
}

func TestRegister_LinkButtonNotPressed(t *testing.T) {
	host, port := newTLSBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"type": 101, "description": "link button not pressed"}]`))
	})
	c := newTestClient(t, host, port, "old-user")
	c.clientKey = "old-key"

	creds, err := c.Register(context.Background())
	require.Error(t, err)
	assert.Equal(t, 101, Status(err))
	assert.True(t, model.IsCode(err, model.ErrLinkButtonNotPushed))
	assert.Equal(t, model.Credentials{}, creds)
	assert.Equal(t, model.Credentials{Username: "old-user", ClientKey: "old-key"}, c.Credentials())
}

func TestRegister_BareSuccessObject(t *testing.T) {
	host, port := newTLSBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"username": "abc123", "clientkey": "deadbeef"}`))
	})
	c := newTestClient(t, host, port, "")

	creds, err := c.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, Status(err))
	assert.Equal(t, "abc123", creds.Username)
	assert.Equal(t, "deadbeef", creds.ClientKey)
	assert.Equal(t, creds, c.Credentials())
}

func TestRegister_RequestBody(t *testing.T) {
	bodies := make(chan string, 1)
	host, port := newTLSBridge(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		bodies <- string(body)
		_, _ = w.Write([]byte(`[{"success":{"username":"u1","clientkey":"K1"}}]`))
	})
	c := newTestClient(t, host, port, "")

	_, err := c.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "huerest-test#unit", c.DeviceType())
	assert.JSONEq(t, `{"devicetype":"`+c.DeviceType()+`","generateclientkey":true}`, <-bodies)
}

func TestRegister_MissingUsernameIsProtocolError(t *testing.T) {
	host, port := newTLSBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"success":{}}]`))
	})
	c := newTestClient(t, host, port, "keep")

	_, err := c.Register(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Equal(t, -1, Status(err))
	assert.Equal(t, "keep", c.Credentials().Username)
}

func TestRegister_Simulator(t *testing.T) {
	sim := simulator.NewServer()
	defer sim.Close()
	c := newSimClient(t, sim, "")
	ctx := context.Background()

	_, err := c.Register(ctx)
	assert.True(t, model.IsCode(err, model.ErrLinkButtonNotPushed))
	assert.Empty(t, c.Credentials().Username)

	sim.PressLinkButton()
	creds, err := c.Register(ctx)
	require.NoError(t, err)
	assert.Len(t, creds.Username, 40)
	assert.Len(t, creds.ClientKey, 32)
	assert.True(t, sim.HasUser(creds.Username))

	// Subsequent calls use the stored username.
	entries, err := c.ListWhitelist(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, creds.Username, entries[0].Username)
	assert.Equal(t, "huerest-test#unit", entries[0].Name)
}

func TestRegister_LinkButtonWindowExpires(t *testing.T) {
	sim := simulator.NewServer()
	defer sim.Close()
	clock := newFakeClock()
	sim.SetClock(clock.Now)
	c := newSimClient(t, sim, "")

	sim.PressLinkButton()
	clock.Advance(simulator.LinkButtonWindow + time.Second)
	_, err := c.Register(context.Background())
	assert.Equal(t, int(model.ErrLinkButtonNotPushed), Status(err))
}

func TestListEntertainmentGroups(t *testing.T) {
	sim := simulator.NewServer()
	defer sim.Close()
	sim.AddUser("user", "test#unit")
	var twelve []string
	for i := 1; i <= 12; i++ {
		twelve = append(twelve, strconv.Itoa(i))
	}
	sim.AddGroup(3, "Living room TV", "Entertainment", "4", "5", "6")
	sim.AddGroup(1, "Kitchen", "Room", "1", "2")
	sim.AddGroup(2, strings.Repeat("n", 40), "Entertainment", twelve...)
	c := newSimClient(t, sim, "user")

	areas, err := c.ListEntertainmentGroups(context.Background())
	require.NoError(t, err)

	want := []model.EntertainmentArea{
		{ID: 2, Name: strings.Repeat("n", model.AreaNameLen-1), LightIDs: []uint16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{ID: 3, Name: "Living room TV", LightIDs: []uint16{4, 5, 6}},
	}
	if diff := cmp.Diff(want, areas); diff != "" {
		t.Errorf("areas mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, c.CachedEntertainmentAreas()); diff != "" {
		t.Errorf("cache mismatch (-want +got):\n%s", diff)
	}
}

func TestListEntertainmentGroups_Supersedes(t *testing.T) {
	sim := simulator.NewServer()
	defer sim.Close()
	sim.AddUser("user", "test#unit")
	sim.AddGroup(1, "First", "Entertainment", "1", "2")
	c := newSimClient(t, sim, "user")
	ctx := context.Background()

	first, err := c.ListEntertainmentGroups(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	sim.AddGroup(1, "Renamed", "Entertainment", "7")
	sim.AddGroup(5, "Second", "Entertainment", "3")
	second, err := c.ListEntertainmentGroups(ctx)
	require.NoError(t, err)
	require.Len(t, second, 2)

	// The first result is the caller's own copy and stays intact.
	assert.Equal(t, "First", first[0].Name)
	assert.Equal(t, []uint16{1, 2}, first[0].LightIDs)

	// Mutating a returned view never reaches the cache.
	second[0].LightIDs[0] = 99
	second[0].Name = "changed"
	cached := c.CachedEntertainmentAreas()
	assert.Equal(t, "Renamed", cached[0].Name)
	assert.Equal(t, []uint16{7}, cached[0].LightIDs)
	assert.Len(t, cached, 2)
}

func TestListEntertainmentGroups_BadLightID(t *testing.T) {
	host, port := newTLSBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"1":{"name":"TV","type":"Entertainment","lights":["x"]}}`))
	})
	c := newTestClient(t, host, port, "user")
	c.areas = []model.EntertainmentArea{{ID: 9, Name: "old"}}

	_, err := c.ListEntertainmentGroups(context.Background())
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Equal(t, []model.EntertainmentArea{{ID: 9, Name: "old"}}, c.areas)
}

func TestListEntertainmentGroups_Empty(t *testing.T) {
	host, port := newTLSBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	c := newTestClient(t, host, port, "user")
	c.areas = []model.EntertainmentArea{{ID: 1, Name: "stale"}}

	areas, err := c.ListEntertainmentGroups(context.Background())
	require.NoError(t, err)
	assert.Empty(t, areas)
	assert.Empty(t, c.CachedEntertainmentAreas())
}

func TestActivateStream(t *testing.T) {
	sim := simulator.NewServer()
	defer sim.Close()
	clock := newFakeClock()
	sim.SetClock(clock.Now)
	sim.AddUser("user", "test#unit")
	sim.AddGroup(4, "TV", "Entertainment", "1", "2")
	c := newSimClient(t, sim, "user")
	ctx := context.Background()

	require.NoError(t, c.ActivateStream(ctx, 4))
	assert.True(t, sim.StreamActive(4))

	// Without a DTLS peer the bridge reverts the group after the handoff window.
	clock.Advance(simulator.StreamHandoffWindow)
	assert.False(t, sim.StreamActive(4))

	require.NoError(t, c.ActivateStream(ctx, 4))
	clock.Advance(5 * time.Second)
	assert.True(t, sim.ConnectStream(4))
	clock.Advance(time.Minute)
	assert.True(t, sim.StreamActive(4))

	require.NoError(t, c.DeactivateStream(ctx, 4))
	assert.False(t, sim.StreamActive(4))
}

func TestActivateStream_PropagatesBridgeCode(t *testing.T) {
	sim := simulator.NewServer()
	defer sim.Close()
	sim.AddUser("user", "test#unit")
	sim.AddGroup(1, "Kitchen", "Room", "1")
	sim.AddGroup(2, "Empty", "Entertainment")
	c := newSimClient(t, sim, "user")
	ctx := context.Background()

	_, err := c.ListEntertainmentGroups(ctx)
	require.NoError(t, err)

	err = c.ActivateStream(ctx, 42)
	assert.Equal(t, int(model.ErrResourceUnavailable), Status(err))

	err = c.ActivateStream(ctx, 2)
	assert.Equal(t, int(model.ErrGroupEmpty), Status(err))

	err = c.ActivateStream(ctx, 1)
	assert.Equal(t, int(model.ErrInvalidValue), Status(err))

	assert.ErrorIs(t, c.ActivateStream(ctx, -1), ErrInvalidRequest)
}

func TestActivateStream_GroupEmptyCode(t *testing.T) {
	host, port := newTLSBridge(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/user/groups/77", r.URL.Path)
		_, _ = w.Write([]byte(`[{"error":{"type":404,"address":"/groups/77","description":"group is empty"}}]`))
	})
	c := newTestClient(t, host, port, "user")

	err := c.ActivateStream(context.Background(), 77)
	code, ok := model.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrGroupEmpty, code)
}

func TestListWhitelist_EmptyClearsCache(t *testing.T) {
	var calls atomic.Int32
	host, port := newTLSBridge(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"name":"Philips hue","whitelist":{
				"b-user":{"name":"app#b","create date":"2026-01-01T10:00:00","last use date":"2026-01-02T10:00:00"},
				"a-user":{"name":"app#a","create date":"2025-12-01T10:00:00","last use date":"2026-01-03T10:00:00"}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"Philips hue","whitelist":{}}`))
	})
	c := newTestClient(t, host, port, "user")
	ctx := context.Background()

	entries, err := c.ListWhitelist(ctx)
	require.NoError(t, err)
	want := []model.WhitelistEntry{
		{Username: "a-user", Name: "app#a", CreateDate: "2025-12-01T10:00:00", LastUseDate: "2026-01-03T10:00:00"},
		{Username: "b-user", Name: "app#b", CreateDate: "2026-01-01T10:00:00", LastUseDate: "2026-01-02T10:00:00"},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("whitelist mismatch (-want +got):\n%s", diff)
	}

	entries, err = c.ListWhitelist(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 0)
	assert.Len(t, c.CachedWhitelist(), 0)
}

func TestListWhitelist_PublicConfigIsProtocolError(t *testing.T) {
	sim := simulator.NewServer()
	defer sim.Close()
	c := newSimClient(t, sim, "unknown-user")

	_, err := c.ListWhitelist(context.Background())
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Nil(t, c.CachedWhitelist())
}

func TestDeleteUser(t *testing.T) {
	sim := simulator.NewServer()
	defer sim.Close()
	sim.AddUser("me", "app#me")
	sim.AddUser("other", "app#other")
	c := newSimClient(t, sim, "me")
	ctx := context.Background()

	require.NoError(t, c.DeleteUser(ctx, "other"))
	assert.Equal(t, []string{"me"}, sim.UserNames())

	err := c.DeleteUser(ctx, "other")
	assert.Equal(t, int(model.ErrResourceUnavailable), Status(err))

	assert.ErrorIs(t, c.DeleteUser(ctx, ""), ErrInvalidRequest)
}

func TestOperations_TransportFailureLeavesStateUntouched(t *testing.T) {
	host, port := newTLSBridge(t, func(w http.ResponseWriter, r *http.Request) {})
	c := newTestClient(t, host, port, "user")
	c.clientKey = "key"
	c.base = "https://127.0.0.1:1"

	areas := []model.EntertainmentArea{{ID: 1, Name: "TV", LightIDs: []uint16{1}}}
	whitelist := []model.WhitelistEntry{{Username: "user", Name: "app#dev"}}
	c.areas = areas
	c.whitelist = whitelist
	ctx := context.Background()

	_, err := c.Register(ctx)
	assert.Negative(t, Status(err))
	_, err = c.ListEntertainmentGroups(ctx)
	assert.Negative(t, Status(err))
	assert.Negative(t, Status(c.ActivateStream(ctx, 1)))
	assert.Negative(t, Status(c.DeactivateStream(ctx, 1)))
	_, err = c.ListWhitelist(ctx)
	assert.Negative(t, Status(err))
	assert.Negative(t, Status(c.DeleteUser(ctx, "someone")))
	assert.ErrorIs(t, err, ErrTransport)

	assert.Equal(t, areas, c.areas)
	assert.Equal(t, whitelist, c.whitelist)
	assert.Equal(t, model.Credentials{Username: "user", ClientKey: "key"}, c.Credentials())
}
