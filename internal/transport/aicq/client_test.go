package aicq

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/aicq-agent/internal/models"
)

const (
	roomID  = "11111111-1111-4111-8111-111111111111"
	selfID  = "22222222-2222-4222-8222-222222222222"
	humanID = "33333333-3333-4333-8333-333333333333"
)

type posted struct {
	path    string
	body    map[string]string
	headers http.Header
}

type fakeServer struct {
	mu       sync.Mutex
	messages []Message // newest first, like the server
	dms      []DirectMessage
	profiles map[string]AgentProfile
	posts    []posted
	roomGets int
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /room/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.roomGets++
		json.NewEncoder(w).Encode(map[string]any{"messages": f.messages})
	})
	mux.HandleFunc("GET /dm", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"messages": f.dms})
	})
	mux.HandleFunc("GET /who/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		p, ok := f.profiles[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "agent not found"})
			return
		}
		json.NewEncoder(w).Encode(p)
	})
	post := func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		f.posts = append(f.posts, posted{path: r.URL.Path, body: body, headers: r.Header.Clone()})
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(PostMessageResponse{ID: "01NEW", Timestamp: 1})
	}
	mux.HandleFunc("POST /room/{id}", post)
	mux.HandleFunc("POST /dm/{id}", post)
	mux.HandleFunc("POST /register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if _, err := ParsePublicKey(body["public_key"]); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "bad key"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(RegisterResponse{ID: selfID, ProfileURL: "/who/" + selfID})
	})
	return mux
}

func (f *fakeServer) addMessage(m Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append([]Message{m}, f.messages...)
}

func newTestClient(t *testing.T) (*Client, *fakeServer, ed25519.PrivateKey) {
	t.Helper()
	_, priv := newKey(t)
	fs := &fakeServer{profiles: map[string]AgentProfile{
		humanID: {ID: humanID, Name: "sam"},
		selfID:  {ID: selfID, Name: "ada", PublicKey: base64.StdEncoding.EncodeToString(priv.Public().(ed25519.PublicKey))},
	}}
	srv := httptest.NewServer(fs.handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, Credentials{AgentID: selfID, PrivateKey: priv}), fs, priv
}

func TestSignRequestVerifies(t *testing.T) {
	pub, priv := newKey(t)
	at := time.UnixMilli(1700000000000)
	body := []byte(`{"body":"hi"}`)

	h := SignRequest(Credentials{AgentID: selfID, PrivateKey: priv}, body, "abcdefabcdefabcdefabcdef", at)
	assert.Equal(t, selfID, h.Get("X-AICQ-Agent"))
	assert.Equal(t, "1700000000000", h.Get("X-AICQ-Timestamp"))

	hash := sha256.Sum256(body)
	payload := hex.EncodeToString(hash[:]) + "|abcdefabcdefabcdefabcdef|1700000000000"
	sig, err := base64.StdEncoding.DecodeString(h.Get("X-AICQ-Signature"))
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, []byte(payload), sig))
}

func TestPostMessageSigned(t *testing.T) {
	c, fs, _ := newTestClient(t)

	resp, err := c.PostMessage(context.Background(), roomID, "hello", "01PARENT")
	require.NoError(t, err)
	assert.Equal(t, "01NEW", resp.ID)

	require.Len(t, fs.posts, 1)
	assert.Equal(t, "/room/"+roomID, fs.posts[0].path)
	assert.Equal(t, "hello", fs.posts[0].body["body"])
	assert.Equal(t, "01PARENT", fs.posts[0].body["pid"])
	assert.Len(t, fs.posts[0].headers.Get("X-AICQ-Nonce"), 24)
	assert.NotEmpty(t, fs.posts[0].headers.Get("X-AICQ-Signature"))
}

func TestPostMessageWithoutCredentials(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", Credentials{})
	_, err := c.PostMessage(context.Background(), roomID, "hello", "")
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestInvalidRoomID(t *testing.T) {
	c, _, _ := newTestClient(t)
	_, err := c.GetMessages(context.Background(), "../etc", 10, 0)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestAPIError(t *testing.T) {
	c, _, _ := newTestClient(t)
	_, err := c.GetAgent(context.Background(), "44444444-4444-4444-8444-444444444444")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "agent not found", apiErr.Message)
}

func TestDisplayName(t *testing.T) {
	c, _, _ := newTestClient(t)
	name, err := c.DisplayName(context.Background(), humanID)
	require.NoError(t, err)
	assert.Equal(t, "sam", name)
}

func TestRegisterAndCredentialsFile(t *testing.T) {
	c, _, _ := newTestClient(t)
	creds, resp, err := c.Register(context.Background(), "ada", "")
	require.NoError(t, err)
	assert.Equal(t, selfID, resp.ID)
	assert.Equal(t, selfID, c.AgentID())

	dir := t.TempDir()
	require.NoError(t, SaveCredentials(dir, creds))
	loaded, err := LoadCredentials(dir)
	require.NoError(t, err)
	assert.Equal(t, creds.AgentID, loaded.AgentID)
	assert.Equal(t, creds.PrivateKey, loaded.PrivateKey)
}

func TestSenderPrivateRoomEncrypts(t *testing.T) {
	c, fs, priv := newTestClient(t)
	s := NewSender(c)

	id, err := s.Send(context.Background(), DMRoom(selfID), "secret reply", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "01NEW", id)

	require.Len(t, fs.posts, 1)
	assert.Equal(t, "/dm/"+selfID, fs.posts[0].path)
	plain, err := DecryptDM(fs.posts[0].body["body"], priv)
	require.NoError(t, err)
	assert.Equal(t, "secret reply", plain)
}

func TestSenderRoom(t *testing.T) {
	c, fs, _ := newTestClient(t)
	_, err := NewSender(c).Send(context.Background(), roomID, "hi", "")
	require.NoError(t, err)
	require.Len(t, fs.posts, 1)
	_, hasPID := fs.posts[0].body["pid"]
	assert.False(t, hasPID)
}

func collect() (func(models.Event), func() []models.Event) {
	var mu sync.Mutex
	var events []models.Event
	return func(ev models.Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		}, func() []models.Event {
			mu.Lock()
			defer mu.Unlock()
			return append([]models.Event(nil), events...)
		}
}

func TestPollerSkipsBacklogAndSelf(t *testing.T) {
	c, fs, _ := newTestClient(t)
	fs.addMessage(Message{ID: "m1", From: humanID, Body: "old news", Timestamp: 1000})
	fs.addMessage(Message{ID: "m2", From: selfID, Body: "my reply", Timestamp: 2000})

	submit, events := collect()
	p := NewPoller(c, PollerConfig{Rooms: []string{roomID}}, submit, zerolog.Nop())

	p.Poll(context.Background())
	assert.Empty(t, events())

	fs.addMessage(Message{ID: "m3", From: humanID, Body: "first new", Timestamp: 3000})
	fs.addMessage(Message{ID: "m4", From: selfID, Body: "me again", Timestamp: 4000})
	fs.addMessage(Message{ID: "m5", From: humanID, Body: "replying to you", ParentID: "m2", Timestamp: 5000})
	p.Poll(context.Background())

	got := events()
	require.Len(t, got, 2)
	assert.Equal(t, "first new", got[0].Text)
	assert.Equal(t, "sam", got[0].AuthorName)
	assert.Equal(t, models.ChatGroup, got[0].ChatKind)
	assert.Equal(t, roomID, got[0].RoomID)
	assert.True(t, got[0].SentAt.Equal(time.UnixMilli(3000)))

	require.NotNil(t, got[1].ReplyTo)
	assert.Equal(t, "m2", got[1].ReplyTo.MessageID)
	assert.Equal(t, selfID, got[1].ReplyTo.AuthorID)

	p.Poll(context.Background())
	assert.Len(t, events(), 2)
}

func TestPollerDecryptsDMs(t *testing.T) {
	c, fs, priv := newTestClient(t)
	submit, events := collect()
	p := NewPoller(c, PollerConfig{PollPrivate: true}, submit, zerolog.Nop())

	p.Poll(context.Background())

	body, err := EncryptDM("psst", priv.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	fs.mu.Lock()
	fs.dms = []DirectMessage{
		{ID: "d2", From: humanID, Body: "garbage", Timestamp: 2000},
		{ID: "d1", From: humanID, Body: body, Timestamp: 1000},
	}
	fs.mu.Unlock()
	p.Poll(context.Background())

	got := events()
	require.Len(t, got, 1)
	assert.Equal(t, "psst", got[0].Text)
	assert.Equal(t, DMRoom(humanID), got[0].RoomID)
	assert.True(t, got[0].IsPrivate())
}

func TestPollerRunStops(t *testing.T) {
	c, fs, _ := newTestClient(t)
	p := NewPoller(c, PollerConfig{Rooms: []string{roomID}, Interval: 5 * time.Millisecond}, func(models.Event) {}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return fs.roomGets >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPeerFromRoom(t *testing.T) {
	peer, ok := PeerFromRoom(DMRoom(humanID))
	assert.True(t, ok)
	assert.Equal(t, humanID, peer)
	_, ok = PeerFromRoom(roomID)
	assert.False(t, ok)
	assert.True(t, strings.HasPrefix(DMRoom("x"), DMRoomPrefix))
}

func TestBoundedCacheEvicts(t *testing.T) {
	c := newBoundedCache[string, int](2)
	c.put("a", 1)
	c.put("b", 2)
	c.put("c", 3)
	_, ok := c.get("a")
	assert.False(t, ok)
	v, ok := c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, c.len())
}
