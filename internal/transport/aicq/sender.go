package aicq

import (
	"context"
)

// Sender delivers outbound chunks through the client.
type Sender struct {
	client *Client
}

// NewSender returns a Sender.
func NewSender(client *Client) *Sender {
	return &Sender{client: client}
}

// Send posts text to roomID, replying to replyTo when set, and returns
// the id the server assigned. Private rooms are delivered encrypted to
// the peer, without a reply link.
func (s *Sender) Send(ctx context.Context, roomID, text, replyTo string) (string, error) {
	if peer, ok := PeerFromRoom(roomID); ok {
		resp, err := s.client.SendDM(ctx, peer, text)
		if err != nil {
			return "", err
		}
		return resp.ID, nil
	}
	resp, err := s.client.PostMessage(ctx, roomID, text, replyTo)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}
