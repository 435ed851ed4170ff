package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/HimanhsuRaj/chat-app-backend/internal/presence"
	"github.com/HimanhsuRaj/chat-app-backend/internal/store"
)

// forwardTyping relays typing and stop-typing indicators to the addressed
// peer, stamped with the session's own identity. No state changes.
func (r *EventRouter) forwardTyping(event string) HandlerFunc {
	return func(ctx context.Context, sess *presence.Session, payload json.RawMessage) error {
		toUserID := gjson.GetBytes(payload, "toUserId").String()
		if toUserID == "" {
			return fmt.Errorf("%s: missing toUserId", event)
		}
		r.notifier.Push(toUserID, event, map[string]string{"from": sess.UserID})
		return nil
	}
}

// handleCallUser forwards call signaling to the callee as incoming-call.
func (r *EventRouter) handleCallUser(ctx context.Context, sess *presence.Session, payload json.RawMessage) error {
	to := gjson.GetBytes(payload, "to").String()
	if to == "" {
		return fmt.Errorf("call-user: missing to")
	}
	from := gjson.GetBytes(payload, "from").String()
	if from == "" {
		from = sess.UserID
	}
	peerID := gjson.GetBytes(payload, "peerId").String()

	r.notifier.Push(to, "incoming-call", map[string]string{
		"from":   from,
		"peerId": peerID,
	})
	return nil
}

// forwardCallSignal handles accept-call and reject-call, which carry no
// payload beyond the target.
func (r *EventRouter) forwardCallSignal(outEvent string) HandlerFunc {
	return func(ctx context.Context, sess *presence.Session, payload json.RawMessage) error {
		to := gjson.GetBytes(payload, "to").String()
		if to == "" {
			return fmt.Errorf("%s: missing to", outEvent)
		}
		r.notifier.Push(to, outEvent, struct{}{})
		return nil
	}
}

// handleEndCall forwards call-ended to the callee and echoes it back to the
// caller, so both sides tear down their call UI even if the callee never
// received the signal.
func (r *EventRouter) handleEndCall(ctx context.Context, sess *presence.Session, payload json.RawMessage) error {
	to := gjson.GetBytes(payload, "to").String()
	if to != "" {
		r.notifier.Push(to, "call-ended", struct{}{})
	}
	r.notifier.Push(sess.UserID, "call-ended", struct{}{})
	return nil
}

type sendMessagePayload struct {
	Message store.Message `json:"message"`
}

func (r *EventRouter) handleSendMessage(ctx context.Context, sess *presence.Session, payload json.RawMessage) error {
	var p sendMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("send-message: decode payload: %w", err)
	}
	// The session, not the payload, decides who the sender is.
	p.Message.SenderID = sess.UserID
	if p.Message.ReceiverID == "" {
		return fmt.Errorf("send-message: missing receiverId")
	}
	return r.delivery.Send(ctx, &p.Message)
}

func (r *EventRouter) handleReadMessages(ctx context.Context, sess *presence.Session, payload json.RawMessage) error {
	fromUserID := gjson.GetBytes(payload, "fromUserId").String()
	toUserID := gjson.GetBytes(payload, "toUserId").String()
	if fromUserID == "" || toUserID == "" {
		return fmt.Errorf("read-messages: missing fromUserId or toUserId")
	}
	return r.delivery.MarkRead(ctx, fromUserID, toUserID)
}

func (r *EventRouter) handleJoinChat(ctx context.Context, sess *presence.Session, payload json.RawMessage) error {
	peerID := gjson.GetBytes(payload, "chattingWith").String()
	if peerID == "" {
		return fmt.Errorf("join-chat: missing chattingWith")
	}
	r.tracker.Join(sess.UserID, peerID)
	return nil
}

func (r *EventRouter) handleLeaveChat(ctx context.Context, sess *presence.Session, payload json.RawMessage) error {
	r.tracker.Leave(sess.UserID)
	return nil
}
