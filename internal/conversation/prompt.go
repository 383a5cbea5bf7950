package conversation

import (
	"fmt"
	"strings"

	"github.com/yungbote/talkco-backend/internal/content"
	"github.com/yungbote/talkco-backend/internal/domain/learner"
)

const basePrompt = `You are a friendly, patient English conversation partner for a native Mandarin Chinese speaker who is practicing spoken English.

Guidelines:
- Adapt your vocabulary and sentence complexity to the learner's level.
- Keep every reply short: one or two sentences, then hand the turn back, usually with a question.
- Do not correct mistakes during the conversation. Keep the conversation flowing; mistakes are reviewed afterwards.
- If the learner is stuck, rephrase more simply or offer a choice of answers.
- Speak only English unless the learner explicitly asks what a word means in Chinese.
- When the learner asks about news or current events, call the search_news tool and talk about the results.`

const reviewBasePrompt = `You are a supportive English tutor running a focused practice session for a native Mandarin Chinese speaker.

Guidelines:
- Drill the learner's weak points listed below through short, natural prompts that make them use the target patterns.
- Ask one thing at a time and keep your own turns to one or two sentences.
- When the learner gets a pattern wrong, model the correct form briefly and ask them to try again.
- When they get it right, acknowledge it and move to the next pattern.
- Speak only English unless the learner explicitly asks for a Chinese explanation.`

// ConversationPrompt holds what a conversation-mode session knows about its learner.
type ConversationPrompt struct {
	Topic   content.Topic
	Level   string
	Profile learner.ProfileData
	// History holds summaries of earlier sessions on the same topic, newest first.
	History []string
}

// ReviewPrompt holds what a review-mode session drills.
type ReviewPrompt struct {
	Level   string
	Profile learner.ProfileData
	// Notes holds notes from earlier review sessions, newest first.
	Notes   []string
	Catalog *content.Catalog
}

const (
	reviewPatternsPerDimension = 3
	reviewExamplesPerPattern   = 3
)

func (p ConversationPrompt) Instructions() string {
	var b strings.Builder
	b.WriteString(basePrompt)

	b.WriteString("\n\nTopic: ")
	b.WriteString(p.Topic.LabelEN)
	if p.Topic.PromptHint != "" {
		b.WriteString("\n")
		b.WriteString(p.Topic.PromptHint)
	}

	if ctx := learnerContext(p.Level, p.Profile); ctx != "" {
		b.WriteString("\n\nAbout the learner:\n")
		b.WriteString(ctx)
	}

	if len(p.History) > 0 {
		b.WriteString("\n\nPrevious conversations on this topic (most recent first):\n")
		for _, h := range p.History {
			fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(h))
		}
		b.WriteString("Build on these naturally; do not repeat the same questions.")
	}

	b.WriteString("\n\nStart the conversation with a short, warm greeting and an opening question about the topic.")
	return b.String()
}

func (p ReviewPrompt) Instructions() string {
	var b strings.Builder
	b.WriteString(reviewBasePrompt)

	if ctx := learnerContext(p.Level, p.Profile); ctx != "" {
		b.WriteString("\n\nAbout the learner:\n")
		b.WriteString(ctx)
	}

	weak := p.weakPoints()
	b.WriteString("\n\nWeak points to practice:\n")
	if weak == "" {
		b.WriteString("- No recorded weak points yet. Practice general sentence building and natural phrasing.\n")
	} else {
		b.WriteString(weak)
	}

	if len(p.Notes) > 0 {
		b.WriteString("\nNotes from earlier practice sessions (most recent first):\n")
		for _, n := range p.Notes {
			fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(n))
		}
	}

	b.WriteString("\nStart with a short greeting, say what you will practice today, and give the first prompt.")
	return b.String()
}

func (p ReviewPrompt) weakPoints() string {
	var b strings.Builder
	for _, dim := range learner.WeakPointDimensions {
		patterns := p.Profile.WeakPoints[dim]
		if len(patterns) > reviewPatternsPerDimension {
			patterns = patterns[:reviewPatternsPerDimension]
		}
		label := dim
		if p.Catalog != nil {
			if d, ok := p.Catalog.Dimension(dim); ok {
				label = d.EN
			}
		}
		for _, wp := range patterns {
			fmt.Fprintf(&b, "- [%s] %s\n", label, wp.Pattern)
			examples := wp.Examples
			if len(examples) > reviewExamplesPerPattern {
				examples = examples[:reviewExamplesPerPattern]
			}
			for _, ex := range examples {
				fmt.Fprintf(&b, "  Wrong: %q → Correct: %q\n", ex.Wrong, ex.Correct)
			}
		}
	}
	return b.String()
}

func learnerContext(level string, d learner.ProfileData) string {
	var lines []string
	if level != "" {
		lines = append(lines, "- English level (CEFR): "+level)
	}
	if len(d.PersonalFacts) > 0 {
		lines = append(lines, "- Personal facts: "+strings.Join(d.PersonalFacts, "; "))
	}
	if len(d.CommonErrors) > 0 {
		lines = append(lines, "- Common errors: "+strings.Join(d.CommonErrors, "; "))
	}
	if d.ProgressNotes != "" {
		lines = append(lines, "- Progress: "+d.ProgressNotes)
	}
	return strings.Join(lines, "\n")
}
