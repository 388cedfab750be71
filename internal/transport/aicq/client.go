// Package aicq connects the agent to an AICQ server: it polls rooms and
// the private inbox for inbound events and delivers outbound chunks.
package aicq

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	signing "github.com/eldtechnologies/aicq-agent/internal/crypto"
)

// GlobalRoom is the ID of the default global channel.
const GlobalRoom = "00000000-0000-0000-0000-000000000001"

var (
	ErrNoCredentials = errors.New("agent credentials not loaded")
	ErrInvalidID     = errors.New("invalid AICQ id")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("AICQ error %d: %s", e.Status, e.Message)
}

// Credentials identify this agent to the server.
type Credentials struct {
	AgentID    string
	PrivateKey ed25519.PrivateKey
}

type credentialsFile struct {
	ID        string `json:"id"`
	PublicKey string `json:"public_key"`
}

// LoadCredentials reads agent.json and private.key from dir.
func LoadCredentials(dir string) (Credentials, error) {
	data, err := os.ReadFile(filepath.Join(dir, "agent.json"))
	if err != nil {
		return Credentials{}, err
	}
	var cf credentialsFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return Credentials{}, fmt.Errorf("parsing agent.json: %w", err)
	}

	keyData, err := os.ReadFile(filepath.Join(dir, "private.key"))
	if err != nil {
		return Credentials{}, err
	}
	seed, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(keyData)))
	if err != nil {
		return Credentials{}, fmt.Errorf("decoding private.key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return Credentials{}, fmt.Errorf("private.key: seed length %d, expected %d", len(seed), ed25519.SeedSize)
	}
	return Credentials{AgentID: cf.ID, PrivateKey: ed25519.NewKeyFromSeed(seed)}, nil
}

// SaveCredentials writes creds to dir with owner-only permissions.
func SaveCredentials(dir string, creds Credentials) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	pub := creds.PrivateKey.Public().(ed25519.PublicKey)
	data, _ := json.MarshalIndent(credentialsFile{
		ID:        creds.AgentID,
		PublicKey: base64.StdEncoding.EncodeToString(pub),
	}, "", "  ")
	if err := os.WriteFile(filepath.Join(dir, "agent.json"), data, 0600); err != nil {
		return err
	}
	seed := base64.StdEncoding.EncodeToString(creds.PrivateKey.Seed())
	return os.WriteFile(filepath.Join(dir, "private.key"), []byte(seed), 0600)
}

// DefaultConfigDir is ~/.aicq.
func DefaultConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".aicq")
}

// Client is an AICQ API client.
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
}

// NewClient creates a client. creds may be empty for unauthenticated use.
func NewClient(baseURL string, creds Credentials) *Client {
	if baseURL == "" {
		baseURL = "https://aicq.ai"
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		creds:   creds,
	}
}

// AgentID returns the id the client signs as.
func (c *Client) AgentID() string { return c.creds.AgentID }

// signHeaders builds the X-AICQ-* headers for body.
func (c *Client) signHeaders(body []byte) (http.Header, error) {
	if c.creds.AgentID == "" || c.creds.PrivateKey == nil {
		return nil, ErrNoCredentials
	}
	nonceBytes := make([]byte, 12)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, err
	}
	return SignRequest(c.creds, body, hex.EncodeToString(nonceBytes), time.Now()), nil
}

// SignRequest returns the headers that authenticate body as creds.
// The signed payload is sha256hex(body)|nonce|unix_ms.
func SignRequest(creds Credentials, body []byte, nonce string, at time.Time) http.Header {
	ts := at.UnixMilli()
	payload := signing.SignaturePayload(signing.BodyHash(body), nonce, ts)
	sig := ed25519.Sign(creds.PrivateKey, payload)

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-AICQ-Agent", creds.AgentID)
	h.Set("X-AICQ-Nonce", nonce)
	h.Set("X-AICQ-Timestamp", strconv.FormatInt(ts, 10))
	h.Set("X-AICQ-Signature", base64.StdEncoding.EncodeToString(sig))
	return h
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, signed bool) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if signed {
		h, err := c.signHeaders(body)
		if err != nil {
			return err
		}
		req.Header = h
	} else {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// RegisterResponse is the response from agent registration.
type RegisterResponse struct {
	ID         string `json:"id"`
	ProfileURL string `json:"profile_url"`
}

// Register creates a new identity on the server and returns its
// credentials. The client signs as the new identity afterwards.
func (c *Client) Register(ctx context.Context, name, email string) (Credentials, *RegisterResponse, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Credentials{}, nil, err
	}

	req := struct {
		PublicKey string `json:"public_key"`
		Name      string `json:"name"`
		Email     string `json:"email,omitempty"`
	}{base64.StdEncoding.EncodeToString(pub), name, email}

	var resp RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/register", req, &resp, false); err != nil {
		return Credentials{}, nil, err
	}
	c.creds = Credentials{AgentID: resp.ID, PrivateKey: priv}
	return c.creds, &resp, nil
}

// Message is a room message as the server returns it.
type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Body      string `json:"body"`
	ParentID  string `json:"pid,omitempty"`
	Timestamp int64  `json:"ts"`
}

// MessagesResponse is the response from getting room messages.
type MessagesResponse struct {
	Room struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"room"`
	Messages []Message `json:"messages"` // newest first
	HasMore  bool      `json:"has_more"`
}

// GetMessages retrieves up to limit messages of a room older than
// before (unix ms, 0 for the newest).
func (c *Client) GetMessages(ctx context.Context, roomID string, limit int, before int64) (*MessagesResponse, error) {
	if err := checkID(roomID); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if before > 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}

	var resp MessagesResponse
	if err := c.do(ctx, http.MethodGet, "/room/"+roomID+"?"+q.Encode(), nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PostMessageResponse is the response from posting a message.
type PostMessageResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PostMessage posts body to a room, optionally as a reply to parentID.
func (c *Client) PostMessage(ctx context.Context, roomID, body, parentID string) (*PostMessageResponse, error) {
	if err := checkID(roomID); err != nil {
		return nil, err
	}
	req := struct {
		Body string `json:"body"`
		PID  string `json:"pid,omitempty"`
	}{body, parentID}

	var resp PostMessageResponse
	if err := c.do(ctx, http.MethodPost, "/room/"+roomID, req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DirectMessage is an encrypted private message in the inbox.
type DirectMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Body      string `json:"body"`
	Timestamp int64  `json:"ts"`
}

// GetDMs returns the agent's inbox, newest first.
func (c *Client) GetDMs(ctx context.Context) ([]DirectMessage, error) {
	var resp struct {
		Messages []DirectMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/dm", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendDM encrypts plaintext for the recipient and delivers it.
func (c *Client) SendDM(ctx context.Context, toID, plaintext string) (*PostMessageResponse, error) {
	profile, err := c.GetAgent(ctx, toID)
	if err != nil {
		return nil, fmt.Errorf("looking up recipient: %w", err)
	}
	pub, err := ParsePublicKey(profile.PublicKey)
	if err != nil {
		return nil, err
	}
	body, err := EncryptDM(plaintext, pub)
	if err != nil {
		return nil, err
	}

	req := struct {
		Body string `json:"body"`
	}{body}
	var resp PostMessageResponse
	if err := c.do(ctx, http.MethodPost, "/dm/"+toID, req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Decrypt opens a DM addressed to this agent.
func (c *Client) Decrypt(dm DirectMessage) (string, error) {
	if c.creds.PrivateKey == nil {
		return "", ErrNoCredentials
	}
	return DecryptDM(dm.Body, c.creds.PrivateKey)
}

// AgentProfile is an agent's public profile.
type AgentProfile struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	PublicKey string `json:"public_key"`
	JoinedAt  string `json:"joined_at"`
}

// GetAgent gets an agent's profile.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*AgentProfile, error) {
	if err := checkID(agentID); err != nil {
		return nil, err
	}
	var resp AgentProfile
	if err := c.do(ctx, http.MethodGet, "/who/"+agentID, nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DisplayName resolves the profile name of id, for the team registry.
func (c *Client) DisplayName(ctx context.Context, id string) (string, error) {
	profile, err := c.GetAgent(ctx, id)
	if err != nil {
		return "", err
	}
	if profile.Name == "" {
		return "", fmt.Errorf("agent %s has no name", id)
	}
	return profile.Name, nil
}
