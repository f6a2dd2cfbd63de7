package session

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/CamView/internal/domain"
)

const jsonRPCVersion = "2.0"

// LastWillPayload is what the broker announces on the status topic after an
// abnormal disconnect.
const LastWillPayload = "Connection Lost"

type Method string

const (
	MethodOffer     Method = "offer"
	MethodAnswer    Method = "answer"
	MethodCandidate Method = "candidate"
	MethodClose     Method = "close"
)

func RequestTopic(id domain.DeviceID) string { return fmt.Sprintf("webrtc/%s/jsonrpc", id) }
func ReplyTopic(id domain.DeviceID) string   { return fmt.Sprintf("webrtc/%s/jsonrpc-reply", id) }
func StatusTopic(id domain.DeviceID) string  { return fmt.Sprintf("webrtc/%s/status", id) }

// Request is the outbound envelope for offer, answer, candidate and close.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  Method `json:"method"`
	ID      int    `json:"id"`
	Params  any    `json:"params,omitempty"`
}

func encodeRequest(method Method, id int, params any) ([]byte, error) {
	return json.Marshal(Request{JSONRPC: jsonRPCVersion, Method: method, ID: id, Params: params})
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Reply is an inbound envelope. ID is a pointer so a missing id is
// distinguishable from zero.
type Reply struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  Method          `json:"method,omitempty"`
	ID      *int            `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func ParseReply(data []byte) (Reply, error) {
	var r Reply
	if err := json.Unmarshal(data, &r); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if r.ID == nil {
		return Reply{}, fmt.Errorf("%w: missing id", ErrMalformedMessage)
	}
	return r, nil
}

// SDP returns the session description carried in result.
func (r Reply) SDP() (string, error) {
	var s string
	if err := json.Unmarshal(r.Result, &s); err != nil || s == "" {
		return "", fmt.Errorf("%w: result is not a session description", ErrMalformedMessage)
	}
	return s, nil
}
