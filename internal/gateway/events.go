package gateway

import (
	"encoding/json"
)

// Op codes for gateway payloads.
const (
	OpDispatch     = 0
	OpHeartbeat    = 1
	OpIdentify     = 2
	OpSubscribe    = 3
	OpUnsubscribe  = 4
	OpInvalid      = 9
	OpHello        = 10
	OpHeartbeatAck = 11
)

// Event names for DISPATCH payloads.
const (
	EventReady          = "READY"
	EventSubscribed     = "SUBSCRIBED"
	EventMessageCreate  = "MESSAGE_CREATE"
	EventMessageUpdate  = "MESSAGE_UPDATE"
	EventMessageDelete  = "MESSAGE_DELETE"
	EventReactionAdd    = "REACTION_ADD"
	EventReactionRemove = "REACTION_REMOVE"
)

// GatewayPayload is the envelope for all gateway messages.
type GatewayPayload struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d,omitempty"`
	Sequence *int64          `json:"s,omitempty"`
	Event    *string         `json:"t,omitempty"`
}

// IdentifyData is sent by the client in an Op 2 IDENTIFY.
type IdentifyData struct {
	Token string `json:"token"`
}

// SubscribeData names a scope in Op 3 SUBSCRIBE and Op 4 UNSUBSCRIBE.
// Ids are decimal strings, matching the REST API.
type SubscribeData struct {
	ChannelID       string `json:"channel_id,omitempty"`
	ConversationID  string `json:"conversation_id,omitempty"`
	ParentMessageID string `json:"parent_message_id,omitempty"`
}

// HelloData is sent by the server after WebSocket connect.
type HelloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// ReadyData is sent by the server after successful IDENTIFY.
type ReadyData struct {
	SessionID string `json:"session_id"`
	UserID    int64  `json:"user_id,string"`
}

// SubscribedData acknowledges a SUBSCRIBE.
type SubscribedData struct {
	Scope string `json:"scope"`
}

// InvalidData explains why a client op was rejected.
type InvalidData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScopedEvent is what travels between instances: one event for one scope.
type ScopedEvent struct {
	Scope string          `json:"scope"`
	Name  string          `json:"name"`
	Data  json.RawMessage `json:"data"`
}

// MessageEventData is the payload for MESSAGE_* events.
type MessageEventData struct {
	Scope     string `json:"scope"`
	MessageID int64  `json:"message_id,string"`
}

// ReactionEventData is the payload for REACTION_* events.
type ReactionEventData struct {
	Scope      string `json:"scope"`
	MessageID  int64  `json:"message_id,string"`
	MemberID   int64  `json:"member_id,string"`
	ReactionID int64  `json:"reaction_id,string"`
	Value      string `json:"value"`
}
