package chatgateway

import (
	"context"
	"log/slog"
	"strings"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/carlosapgomes/triage-automation/pkg/intake"
)

// Handlers is what the Listener dispatches a classified inbound event
// to: Intake (C5) for new PDF submissions, the template parsers (C8)
// for room-2/room-3 replies, and reaction checkpoints (C9) for
// thumbs-up reactions. cmd/chatlistener wires the concrete
// implementations; chatgateway itself only classifies.
type Handlers interface {
	HandleIntake(ctx context.Context, ev intake.ParsedRoom1PDFIntakeEvent) error
	HandleDoctorDecisionReply(ctx context.Context, roomID, eventID, targetEventID, senderUserID, body string) error
	HandleSchedulerReply(ctx context.Context, roomID, eventID, targetEventID, senderUserID, body string) error
	HandleReaction(ctx context.Context, roomID, relatedEventID, reactorUserID, reactionEventID string) error
}

// RoomSet names the three rooms the listener cares about, from spec §6
// config keys ROOM1_ID/ROOM2_ID/ROOM3_ID.
type RoomSet struct {
	Room1ID string
	Room2ID string
	Room3ID string
}

// Listener runs a Matrix /sync loop and classifies inbound timeline
// events into intake/decision-reply/scheduler-reply/reaction calls
// (spec §4.6, §4.8, Listener bullet of §6).
type Listener struct {
	api      *mautrix.Client
	botUser  id.UserID
	rooms    RoomSet
	handlers Handlers
	logger   *slog.Logger
}

// NewListener constructs a Listener sharing the Matrix connection used
// by Client for outbound posts.
func NewListener(api *mautrix.Client, botUser id.UserID, rooms RoomSet, handlers Handlers) *Listener {
	return &Listener{
		api:      api,
		botUser:  botUser,
		rooms:    rooms,
		handlers: handlers,
		logger:   slog.Default().With("component", "chatgateway-listener"),
	}
}

// Run starts the sync loop and blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	syncer, ok := l.api.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		syncer = mautrix.NewDefaultSyncer()
		l.api.Syncer = syncer
	}
	syncer.OnEventType(event.EventMessage, l.onMessage)
	syncer.OnEventType(event.EventReaction, l.onReaction)

	if err := l.api.SyncWithContext(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (l *Listener) onMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == l.botUser {
		return
	}
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return
	}
	roomID := evt.RoomID.String()
	targetEventID := relatedEventID(content)

	switch roomID {
	case l.rooms.Room1ID:
		if qualifying, ev := l.classifyIntake(evt, content); qualifying {
			if err := l.handlers.HandleIntake(ctx, ev); err != nil {
				l.logger.Error("handle intake failed", "room_id", roomID, "event_id", evt.ID, "error", err)
			}
		}
	case l.rooms.Room2ID:
		if targetEventID == "" {
			return
		}
		if err := l.handlers.HandleDoctorDecisionReply(ctx, roomID, evt.ID.String(), targetEventID, evt.Sender.String(), content.Body); err != nil {
			l.logger.Error("handle doctor decision reply failed", "room_id", roomID, "event_id", evt.ID, "error", err)
		}
	case l.rooms.Room3ID:
		if targetEventID == "" {
			return
		}
		if err := l.handlers.HandleSchedulerReply(ctx, roomID, evt.ID.String(), targetEventID, evt.Sender.String(), content.Body); err != nil {
			l.logger.Error("handle scheduler reply failed", "room_id", roomID, "event_id", evt.ID, "error", err)
		}
	}
}

func (l *Listener) onReaction(ctx context.Context, evt *event.Event) {
	if evt.Sender == l.botUser {
		return
	}
	content, ok := evt.Content.Parsed.(*event.ReactionEventContent)
	if !ok || content.RelatesTo.EventID == "" {
		return
	}
	if err := l.handlers.HandleReaction(ctx, evt.RoomID.String(), content.RelatesTo.EventID.String(), evt.Sender.String(), evt.ID.String()); err != nil {
		l.logger.Error("handle reaction failed", "room_id", evt.RoomID, "event_id", evt.ID, "error", err)
	}
}

// classifyIntake reports whether a room-1 message qualifies as a PDF
// intake event per spec §4.5: a file message with PDF mimetype or a
// .pdf filename. It does not look at the sender; onMessage drops the
// bot's own messages before calling it.
func (l *Listener) classifyIntake(evt *event.Event, content *event.MessageEventContent) (bool, intake.ParsedRoom1PDFIntakeEvent) {
	if content.MsgType != event.MsgFile && content.MsgType != event.MsgDocument {
		return false, intake.ParsedRoom1PDFIntakeEvent{}
	}
	mimetype := ""
	if content.Info != nil {
		mimetype = content.Info.MimeType
	}
	isPDF := mimetype == "application/pdf" || strings.HasSuffix(strings.ToLower(content.Body), ".pdf")
	if !isPDF || content.URL == "" {
		return false, intake.ParsedRoom1PDFIntakeEvent{}
	}
	return true, intake.ParsedRoom1PDFIntakeEvent{
		RoomID:       evt.RoomID.String(),
		EventID:      evt.ID.String(),
		SenderUserID: evt.Sender.String(),
		PDFURI:       string(content.URL),
		Filename:     content.Body,
		Mimetype:     mimetype,
	}
}

// relatedEventID extracts the event id a reply message targets, if any.
func relatedEventID(content *event.MessageEventContent) string {
	if content.RelatesTo == nil || content.RelatesTo.InReplyTo == nil {
		return ""
	}
	return content.RelatesTo.InReplyTo.EventID.String()
}
