// Package chatgateway implements the Chat Gateway port (spec §6) against
// Matrix, via maunium.net/go/mautrix: a thin SDK wrapper for posting,
// replying, redacting and downloading media, plus a /sync Listener that
// classifies inbound room events.
package chatgateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Client is a thin wrapper around the mautrix SDK exposing exactly the
// four verbs spec §6's Chat Gateway port names.
type Client struct {
	api     *mautrix.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient builds a Client authenticated as botUserID against
// homeserverURL using a pre-issued access token (spec §6 config keys
// MATRIX_HOMESERVER_URL/MATRIX_BOT_USER_ID/MATRIX_ACCESS_TOKEN).
func NewClient(homeserverURL, botUserID, accessToken string, timeout time.Duration) (*Client, error) {
	api, err := mautrix.NewClient(homeserverURL, id.UserID(botUserID), accessToken)
	if err != nil {
		return nil, fmt.Errorf("chatgateway: new mautrix client: %w", err)
	}
	return &Client{
		api:     api,
		timeout: timeout,
		logger:  slog.Default().With("component", "chatgateway-client"),
	}, nil
}

// API exposes the underlying mautrix client so cmd/chatlistener can
// share one authenticated connection between outbound Client and the
// inbound Listener's /sync loop.
func (c *Client) API() *mautrix.Client { return c.api }

// BotUserID returns the bot's own Matrix user id, used to build the
// Listener's RoomSet-independent self-echo filter.
func (c *Client) BotUserID() id.UserID { return c.api.UserID }

// PostText posts body as a plain-text message to roomID, returning the
// assigned event id.
func (c *Client) PostText(ctx context.Context, roomID, body string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.SendText(ctx, id.RoomID(roomID), body)
	if err != nil {
		return "", fmt.Errorf("chatgateway: post_text to %s: %w", roomID, err)
	}
	return resp.EventID.String(), nil
}

// ReplyText posts body as a reply targeting parentEventID, returning the
// assigned event id.
func (c *Client) ReplyText(ctx context.Context, roomID, parentEventID, body string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    body,
		RelatesTo: &event.RelatesTo{
			InReplyTo: &event.InReplyTo{
				EventID: id.EventID(parentEventID),
			},
		},
	}
	resp, err := c.api.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, content)
	if err != nil {
		return "", fmt.Errorf("chatgateway: reply_text to %s/%s: %w", roomID, parentEventID, err)
	}
	return resp.EventID.String(), nil
}

// RedactEvent redacts eventID in roomID, used by the cleanup handler
// (spec §4.6) once a case reaches its terminal branch.
func (c *Client) RedactEvent(ctx context.Context, roomID, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.api.RedactEvent(ctx, id.RoomID(roomID), id.EventID(eventID), mautrix.ReqRedact{})
	if err != nil {
		return fmt.Errorf("chatgateway: redact_event %s/%s: %w", roomID, eventID, err)
	}
	return nil
}

// DownloadMedia fetches the bytes behind an mxc:// content URI. Empty
// bytes without an error is treated as a failure per spec §6.
func (c *Client) DownloadMedia(ctx context.Context, mxcURI string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parsed, err := id.ParseContentURI(mxcURI)
	if err != nil {
		return nil, fmt.Errorf("chatgateway: invalid content uri %q: %w", mxcURI, err)
	}
	reader, err := c.api.Download(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("chatgateway: download_media %s: %w", mxcURI, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("chatgateway: read media body %s: %w", mxcURI, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("chatgateway: download_media %s returned empty bytes", mxcURI)
	}
	return data, nil
}
