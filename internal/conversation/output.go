package conversation

import (
	"math"
	"time"
)

type OutputKind string

const (
	KindTranscript OutputKind = "transcript"
	KindResponse   OutputKind = "response"
	KindAudio      OutputKind = "audio"
	KindTiming     OutputKind = "timing"
	KindDone       OutputKind = "done"
)

const (
	StepFirstAudio = "first_audio"
	StepTotal      = "total"
)

// OutputItem is one piece of a streamed turn. Every stream ends with exactly one KindDone.
type OutputItem struct {
	Kind      OutputKind
	Text      string
	Audio     string // base64 pcm16
	Step      string
	DurationS float64
}

// Payload is the JSON body sent to the client for this item.
func (o OutputItem) Payload() map[string]any {
	switch o.Kind {
	case KindTranscript, KindResponse:
		return map[string]any{"text": o.Text}
	case KindAudio:
		return map[string]any{"audio": o.Audio}
	case KindTiming:
		return map[string]any{"step": o.Step, "duration_s": o.DurationS}
	default:
		return map[string]any{}
	}
}

func timingItem(step string, d time.Duration) OutputItem {
	return OutputItem{Kind: KindTiming, Step: step, DurationS: math.Round(d.Seconds()*1000) / 1000}
}
