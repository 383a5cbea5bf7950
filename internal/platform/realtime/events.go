package realtime

import "encoding/json"

// Client → server event types.
const (
	EventSessionUpdate      = "session.update"
	EventInputAudioAppend   = "input_audio_buffer.append"
	EventInputAudioCommit   = "input_audio_buffer.commit"
	EventConversationCreate = "conversation.item.create"
	EventResponseCreate     = "response.create"
)

// Server → client event types the backend reacts to. Everything else is carried through
// with its Type set and otherwise ignored.
const (
	EventSessionCreated         = "session.created"
	EventSessionUpdated         = "session.updated"
	EventInputTranscriptionDone = "conversation.item.input_audio_transcription.completed"
	EventAudioTranscriptDelta   = "response.audio_transcript.delta"
	EventTextDelta              = "response.text.delta"
	EventAudioDelta             = "response.audio.delta"
	EventOutputItemDone         = "response.output_item.done"
	EventResponseDone           = "response.done"
	EventError                  = "error"
)

const (
	ItemTypeMessage            = "message"
	ItemTypeFunctionCall       = "function_call"
	ItemTypeFunctionCallOutput = "function_call_output"
)

type ClientEvent struct {
	Type    string         `json:"type"`
	Session *SessionConfig `json:"session,omitempty"`
	Audio   string         `json:"audio,omitempty"`
	Item    *Item          `json:"item,omitempty"`
}

// TurnDetection nil is sent as JSON null, which turns server-side VAD off.
type SessionConfig struct {
	Modalities              []string             `json:"modalities"`
	Instructions            string               `json:"instructions"`
	Voice                   string               `json:"voice"`
	InputAudioFormat        string               `json:"input_audio_format"`
	OutputAudioFormat       string               `json:"output_audio_format"`
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetection       `json:"turn_detection"`
	Tools                   []ToolSchema         `json:"tools,omitempty"`
	ToolChoice              string               `json:"tool_choice,omitempty"`
}

type TranscriptionConfig struct {
	Model string `json:"model"`
}

type TurnDetection struct {
	Type string `json:"type"`
}

type ToolSchema struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type Item struct {
	ID        string        `json:"id,omitempty"`
	Type      string        `json:"type"`
	Role      string        `json:"role,omitempty"`
	Content   []ContentPart `json:"content,omitempty"`
	Name      string        `json:"name,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	Output    string        `json:"output,omitempty"`
}

type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ServerEvent is the decoded subset of an inbound frame. Raw keeps the whole frame.
type ServerEvent struct {
	Type       string          `json:"type"`
	EventID    string          `json:"event_id,omitempty"`
	Delta      string          `json:"delta,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Item       *Item           `json:"item,omitempty"`
	Error      *ErrorDetail    `json:"error,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

// IsFunctionCall reports whether the event completes a tool invocation item.
func (e ServerEvent) IsFunctionCall() bool {
	return e.Type == EventOutputItemDone && e.Item != nil && e.Item.Type == ItemTypeFunctionCall
}

func SessionUpdate(cfg SessionConfig) ClientEvent {
	return ClientEvent{Type: EventSessionUpdate, Session: &cfg}
}

func AppendAudio(b64 string) ClientEvent {
	return ClientEvent{Type: EventInputAudioAppend, Audio: b64}
}

func CommitAudio() ClientEvent {
	return ClientEvent{Type: EventInputAudioCommit}
}

func UserText(text string) ClientEvent {
	return ClientEvent{Type: EventConversationCreate, Item: &Item{
		Type:    ItemTypeMessage,
		Role:    "user",
		Content: []ContentPart{{Type: "input_text", Text: text}},
	}}
}

func FunctionCallOutput(callID, output string) ClientEvent {
	return ClientEvent{Type: EventConversationCreate, Item: &Item{
		Type:   ItemTypeFunctionCallOutput,
		CallID: callID,
		Output: output,
	}}
}

func CreateResponse() ClientEvent {
	return ClientEvent{Type: EventResponseCreate}
}
