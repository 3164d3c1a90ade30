package simulator

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amimof/huego"

	"hue-rest-client/internal/domain/model"
)

const (
	// LinkButtonWindow is how long a link button press authorizes registration.
	LinkButtonWindow = 30 * time.Second
	// StreamHandoffWindow is how long an activated group waits for its DTLS peer.
	StreamHandoffWindow = 10 * time.Second

	dateLayout = "2006-01-02T15:04:05"
)

type user struct {
	name      string
	clientKey string
	created   time.Time
	lastUse   time.Time
}

type group struct {
	name        string
	kind        string
	lights      []string
	active      bool
	activatedAt time.Time
	owner       string
	connected   bool
}

// Server is an in-process Hue v1 bridge served over TLS with a self-signed
// certificate. It keeps link button, whitelist, light and group state.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	now         func() time.Time
	linkPressed time.Time
	users       map[string]*user
	lights      map[string]*huego.Light
	groups      map[int]*group
	requests    int
}

// NewServer starts a simulated bridge. Close it when done.
func NewServer() *Server {
	s := &Server{
		now:    time.Now,
		users:  make(map[string]*user),
		lights: make(map[string]*huego.Light),
		groups: make(map[int]*group),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api", s.handleAPI)
	mux.HandleFunc("/api/", s.handleAPI)
	s.Server = httptest.NewTLSServer(mux)
	return s
}

// Endpoint returns the host and port the bridge listens on.
func (s *Server) Endpoint() (string, int) {
	u, _ := url.Parse(s.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	return host, port
}

// SetClock replaces the time source; tests use it to walk through the
// link button and stream windows.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Server) PressLinkButton() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkPressed = s.now()
}

// AddUser whitelists an application without going through registration.
func (s *Server) AddUser(username, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.users[username] = &user{name: name, created: now, lastUse: now}
}

func (s *Server) HasUser(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[username]
	return ok
}

func (s *Server) AddLight(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights[id] = &huego.Light{
		Name:             name,
		Type:             "Extended color light",
		ModelID:          "LCT015",
		UniqueID:         "00:17:88:01:00:00:00:" + id,
		ManufacturerName: "Signify Netherlands B.V.",
		State:            &huego.State{On: false, Reachable: true},
	}
}

// AddGroup configures a group; kind is "Entertainment" for streaming areas.
func (s *Server) AddGroup(id int, name, kind string, lights ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[id] = &group{name: name, kind: kind, lights: lights}
}

// StreamActive reports whether streaming is on for the group. An activated
// group that saw no DTLS connection within StreamHandoffWindow has reverted.
func (s *Server) StreamActive(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return false
	}
	s.expire(g)
	return g.active
}

// ConnectStream marks the DTLS peer as connected, which keeps the group active.
func (s *Server) ConnectStream(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return false
	}
	s.expire(g)
	if !g.active {
		return false
	}
	g.connected = true
	return true
}

// Requests returns how many API requests were served.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *Server) expire(g *group) {
	if g.active && !g.connected && s.now().Sub(g.activatedAt) >= StreamHandoffWindow {
		g.active = false
		g.owner = ""
	}
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			writeError(w, model.ErrMethodNotAllowed, "/", "method, "+r.Method+", not available for resource, /")
			return
		}
		s.handleRegister(w, r)
		return
	}

	parts := strings.Split(path, "/")
	username, sub := parts[0], parts[1:]
	u, ok := s.users[username]
	if !ok {
		if r.Method == http.MethodGet && len(sub) == 1 && sub[0] == "config" {
			writeJSON(w, s.publicConfig())
			return
		}
		writeError(w, model.ErrUnauthorized, "/"+strings.Join(sub, "/"), "unauthorized user")
		return
	}
	u.lastUse = s.now()

	resource := "/" + strings.Join(sub, "/")
	switch {
	case len(sub) == 1 && sub[0] == "lights" && r.Method == http.MethodGet:
		writeJSON(w, s.lights)
	case len(sub) == 1 && sub[0] == "groups" && r.Method == http.MethodGet:
		s.handleGetGroups(w)
	case len(sub) == 2 && sub[0] == "groups" && r.Method == http.MethodPut:
		s.handleSetStream(w, r, username, sub[1])
	case len(sub) == 1 && sub[0] == "config" && r.Method == http.MethodGet:
		s.handleGetConfig(w)
	case len(sub) == 3 && sub[0] == "config" && sub[1] == "whitelist" && r.Method == http.MethodDelete:
		s.handleDeleteUser(w, sub[2])
	case len(sub) >= 1 && (sub[0] == "lights" || sub[0] == "groups" || sub[0] == "config"):
		writeError(w, model.ErrMethodNotAllowed, resource, "method, "+r.Method+", not available for resource, "+resource)
	default:
		writeError(w, model.ErrResourceUnavailable, resource, "resource, "+resource+", not available")
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceType        string `json:"devicetype"`
		GenerateClientKey bool   `json:"generateclientkey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidMessage, "", "body contains invalid json")
		return
	}
	if req.DeviceType == "" {
		writeError(w, model.ErrMissingParameters, "/", "invalid/missing parameters in body")
		return
	}
	if s.linkPressed.IsZero() || s.now().Sub(s.linkPressed) > LinkButtonWindow {
		writeError(w, model.ErrLinkButtonNotPushed, "", "link button not pressed")
		return
	}

	username := randomHex(20)
	now := s.now()
	u := &user{name: req.DeviceType, created: now, lastUse: now}
	success := map[string]string{"username": username}
	if req.GenerateClientKey {
		u.clientKey = strings.ToUpper(randomHex(16))
		success["clientkey"] = u.clientKey
	}
	s.users[username] = u
	writeJSON(w, []map[string]any{{"success": success}})
}

func (s *Server) handleGetGroups(w http.ResponseWriter) {
	groups := make(map[string]huego.Group, len(s.groups))
	for id, g := range s.groups {
		s.expire(g)
		groups[strconv.Itoa(id)] = huego.Group{
			Name:   g.name,
			Type:   g.kind,
			Lights: g.lights,
		}
	}
	writeJSON(w, groups)
}

func (s *Server) handleSetStream(w http.ResponseWriter, r *http.Request, username, idStr string) {
	resource := "/groups/" + idStr
	id, err := strconv.Atoi(idStr)
	g, ok := s.groups[id]
	if err != nil || !ok {
		writeError(w, model.ErrResourceUnavailable, resource, "resource, "+resource+", not available")
		return
	}

	var req struct {
		Stream *struct {
			Active *bool `json:"active"`
		} `json:"stream"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.ErrInvalidMessage, resource, "body contains invalid json")
		return
	}
	if req.Stream == nil || req.Stream.Active == nil {
		writeError(w, model.ErrMissingParameters, resource, "invalid/missing parameters in body")
		return
	}
	if g.kind != "Entertainment" {
		writeError(w, model.ErrInvalidValue, resource+"/stream/active", "invalid value, stream, for parameter, active")
		return
	}
	if len(g.lights) == 0 {
		writeError(w, model.ErrGroupEmpty, resource, "group is empty")
		return
	}

	s.expire(g)
	active := *req.Stream.Active
	if active {
		// Re-activating rearms the handoff window for the same owner.
		g.active = true
		g.activatedAt = s.now()
		g.owner = username
		g.connected = false
	} else {
		g.active = false
		g.owner = ""
		g.connected = false
	}
	writeJSON(w, []map[string]any{{"success": map[string]bool{resource + "/stream/active": active}}})
}

func (s *Server) handleGetConfig(w http.ResponseWriter) {
	whitelist := make(map[string]map[string]string, len(s.users))
	for name, u := range s.users {
		whitelist[name] = map[string]string{
			"name":          u.name,
			"create date":   u.created.UTC().Format(dateLayout),
			"last use date": u.lastUse.UTC().Format(dateLayout),
		}
	}
	cfg := s.publicConfig()
	cfg["whitelist"] = whitelist
	cfg["linkbutton"] = !s.linkPressed.IsZero() && s.now().Sub(s.linkPressed) <= LinkButtonWindow
	writeJSON(w, cfg)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, target string) {
	resource := "/config/whitelist/" + target
	if _, ok := s.users[target]; !ok {
		writeError(w, model.ErrResourceUnavailable, resource, "resource, "+resource+", not available")
		return
	}
	delete(s.users, target)
	writeJSON(w, []map[string]any{{"success": resource + " deleted"}})
}

func (s *Server) publicConfig() map[string]any {
	return map[string]any{
		"name":             "Philips hue",
		"swversion":        "1958077010",
		"apiversion":       "1.50.0",
		"mac":              "00:17:88:10:22:01",
		"bridgeid":         "001788FFFE102201",
		"modelid":          "BSB002",
		"factorynew":       false,
		"datastoreversion": "98",
	}
}

// UserNames lists whitelisted usernames in order.
func (s *Server) UserNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.users))
	for n := range s.users {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code model.ErrorCode, address, description string) {
	writeJSON(w, []map[string]any{{
		"error": map[string]any{
			"type":        int(code),
			"address":     address,
			"description": description,
		},
	}})
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("simulator: read random: %v", err))
	}
	return hex.EncodeToString(b)
}
