package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"
	"unicode/utf8"

	domain "github.com/example/roomrelay/domain/relay"
)

// Validation limits
const (
	MaxNameLength     = 50
	MaxRoomLength     = 100
	MaxTextLength     = 5000
	MaxImageURLLength = 2048
	MaxTargetLength   = 64
)

// Inbound event names.
const (
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventMessage        = "message"
	EventImageMessage   = "imageMessage"
	EventCallUser       = "callUser"
	EventAnswerCall     = "answerCall"
	EventSendOffer      = "sendOffer"
	EventSendAnswer     = "sendAnswer"
	EventSendICE        = "sendICE"
	EventStartGroupCall = "startGroupCall"
)

// Outbound event names.
const (
	EventConnected        = "connected"
	EventChatHistory      = "chatHistory"
	EventActiveUsers      = "activeUsers"
	EventIncomingCall     = "incomingCall"
	EventCallAccepted     = "callAccepted"
	EventReceiveOffer     = "receiveOffer"
	EventReceiveAnswer    = "receiveAnswer"
	EventReceiveICE       = "receiveICE"
	EventGroupCallStarted = "groupCallStarted"
	EventUserDisconnected = "userDisconnected"
	EventError            = "error"
)

// Envelope is the JSON frame exchanged over the websocket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds an outbound frame.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Inbound is one validated client event.
type Inbound interface {
	Event() string
	Validate() error
}

// Signaling is an inbound event relayed to exactly one target connection.
type Signaling interface {
	Inbound
	Target() string
	Outbound() Signal
}

// Signal describes the frame a signaling event turns into at the target.
// Payload is forwarded as-is under Key.
type Signal struct {
	Event   string
	Key     string
	Payload json.RawMessage
}

// JoinRoom registers the connection in a room.
type JoinRoom struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

func (e *JoinRoom) Event() string { return EventJoinRoom }

func (e *JoinRoom) Validate() error {
	if err := ValidateName(e.Name); err != nil {
		return err
	}
	return ValidateRoom(e.Room)
}

// LeaveRoom removes the connection from its room and keeps the socket open.
type LeaveRoom struct{}

func (e *LeaveRoom) Event() string   { return EventLeaveRoom }
func (e *LeaveRoom) Validate() error { return nil }

// PostMessage is a text chat message. Name and Room are informational;
// the joined identity is authoritative.
type PostMessage struct {
	Name string `json:"name"`
	Text string `json:"text"`
	Room string `json:"room"`
}

func (e *PostMessage) Event() string { return EventMessage }

func (e *PostMessage) Validate() error {
	return ValidateText(e.Text)
}

// PostImage shares an uploaded image with the room.
type PostImage struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
	Room     string `json:"room"`
}

func (e *PostImage) Event() string { return EventImageMessage }

func (e *PostImage) Validate() error {
	return ValidateImageURL(e.ImageURL)
}

// CallUser invites a peer to a call.
type CallUser struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
	From   string          `json:"from,omitempty"`
}

func (e *CallUser) Event() string   { return EventCallUser }
func (e *CallUser) Validate() error { return validateSignal(e.To, e.Signal) }
func (e *CallUser) Target() string  { return e.To }
func (e *CallUser) Outbound() Signal {
	return Signal{Event: EventIncomingCall, Key: "signal", Payload: e.Signal}
}

// AnswerCall accepts an incoming call.
type AnswerCall struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

func (e *AnswerCall) Event() string   { return EventAnswerCall }
func (e *AnswerCall) Validate() error { return validateSignal(e.To, e.Signal) }
func (e *AnswerCall) Target() string  { return e.To }
func (e *AnswerCall) Outbound() Signal {
	return Signal{Event: EventCallAccepted, Key: "signal", Payload: e.Signal}
}

// SendOffer carries a WebRTC session description offer.
type SendOffer struct {
	To    string          `json:"to"`
	Offer json.RawMessage `json:"offer"`
}

func (e *SendOffer) Event() string   { return EventSendOffer }
func (e *SendOffer) Validate() error { return validateSignal(e.To, e.Offer) }
func (e *SendOffer) Target() string  { return e.To }
func (e *SendOffer) Outbound() Signal {
	return Signal{Event: EventReceiveOffer, Key: "offer", Payload: e.Offer}
}

// SendAnswer carries a WebRTC session description answer.
type SendAnswer struct {
	To     string          `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

func (e *SendAnswer) Event() string   { return EventSendAnswer }
func (e *SendAnswer) Validate() error { return validateSignal(e.To, e.Answer) }
func (e *SendAnswer) Target() string  { return e.To }
func (e *SendAnswer) Outbound() Signal {
	return Signal{Event: EventReceiveAnswer, Key: "answer", Payload: e.Answer}
}

// SendICE carries one ICE candidate.
type SendICE struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

func (e *SendICE) Event() string   { return EventSendICE }
func (e *SendICE) Validate() error { return validateSignal(e.To, e.Candidate) }
func (e *SendICE) Target() string  { return e.To }
func (e *SendICE) Outbound() Signal {
	return Signal{Event: EventReceiveICE, Key: "candidate", Payload: e.Candidate}
}

// StartGroupCall invites every other member of the room to a call.
// An empty Room means the sender's current room.
type StartGroupCall struct {
	Room string `json:"room,omitempty"`
}

func (e *StartGroupCall) Event() string { return EventStartGroupCall }

func (e *StartGroupCall) Validate() error {
	if e.Room == "" {
		return nil
	}
	return ValidateRoom(e.Room)
}

// DecodeInbound parses and validates one client frame.
func DecodeInbound(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame: %v", ErrValidation, err)
	}

	var ev Inbound
	switch env.Event {
	case EventJoinRoom:
		ev = &JoinRoom{}
	case EventLeaveRoom:
		ev = &LeaveRoom{}
	case EventMessage:
		ev = &PostMessage{}
	case EventImageMessage:
		ev = &PostImage{}
	case EventCallUser:
		ev = &CallUser{}
	case EventAnswerCall:
		ev = &AnswerCall{}
	case EventSendOffer:
		ev = &SendOffer{}
	case EventSendAnswer:
		ev = &SendAnswer{}
	case EventSendICE:
		ev = &SendICE{}
	case EventStartGroupCall:
		ev = &StartGroupCall{}
	case "":
		return nil, fmt.Errorf("%w: event name is required", ErrValidation)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	if data := bytes.TrimSpace(env.Data); len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := json.Unmarshal(data, ev); err != nil {
			return nil, fmt.Errorf("%w: %s payload: %v", ErrValidation, env.Event, err)
		}
	}

	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// ValidateName validates a display name.
func ValidateName(name string) error {
	return validateField("name", strings.TrimSpace(name), MaxNameLength)
}

// ValidateRoom validates a room identifier.
func ValidateRoom(room string) error {
	return validateField("room", strings.TrimSpace(room), MaxRoomLength)
}

// ValidateText validates chat message text.
func ValidateText(text string) error {
	return validateField("text", strings.TrimSpace(text), MaxTextLength)
}

// ValidateImageURL accepts absolute http(s) URLs and paths under /uploads/.
func ValidateImageURL(raw string) error {
	if err := validateField("imageUrl", raw, MaxImageURLLength); err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: imageUrl: %v", ErrValidation, err)
	}
	switch {
	case (u.Scheme == "http" || u.Scheme == "https") && u.Host != "":
		return nil
	case u.Scheme == "" && u.Host == "" && strings.HasPrefix(u.Path, "/uploads/"):
		return nil
	default:
		return fmt.Errorf("%w: imageUrl must be an http(s) URL or an /uploads/ path", ErrValidation)
	}
}

// ImageBody renders the stored body of an image message.
func ImageBody(imageURL string) string {
	return fmt.Sprintf(`<img src="%s" alt="Shared image" class="shared-image"/>`, html.EscapeString(imageURL))
}

func validateSignal(to string, payload json.RawMessage) error {
	if err := validateField("to", to, MaxTargetLength); err != nil {
		return err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return fmt.Errorf("%w: signaling payload is required", ErrValidation)
	}
	return nil
}

func validateField(field, value string, max int) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	if len(value) > max {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrValidation, field, max)
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrValidation, field)
	}
	return nil
}

// GroupCallStarted is sent to every invited member.
type GroupCallStarted struct {
	From    string          `json:"from"`
	Name    string          `json:"name"`
	Room    string          `json:"room"`
	Members []domain.Member `json:"members"`
}

// Connected tells a new connection its own identifier.
type Connected struct {
	ConnectionID string `json:"connectionId"`
}

// ErrorPayload is the body of an "error" event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
