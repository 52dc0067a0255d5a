package llm

import (
	"fmt"
	"strings"

	"millionx-backend/application/ports"
)

const explainSystemPrompt = `You are an expert educator. Explain the given topic clearly and ` +
	`thoroughly in markdown. Start from first principles, use concrete examples, and prefer ` +
	`plain language over jargon. Use headings, lists, and code blocks where they help. ` +
	`Do not include a top-level title; begin directly with the explanation.`

const chatSystemPrompt = `You are a helpful tutor answering follow-up questions about an ` +
	`explanation the student just read. Answer concisely in markdown and stay on topic. ` +
	`If a question goes beyond the explanation, say so and answer from general knowledge.`

const prerequisitesSystemPrompt = `You decompose topics for a learning graph. Respond with a ` +
	`JSON object of the form {"prerequisites": [{"title": "...", "description": "..."}]}. ` +
	`Titles are short noun phrases; descriptions are one sentence. Return between 3 and 6 items.`

const titleSystemPrompt = `Generate a short title (at most 6 words) for a learning session ` +
	`about the given topic. Respond with the title only, no quotes or punctuation around it.`

// buildExplainMessages situates the topic in its lineage so deeper
// explanations assume what the path already covered
func buildExplainMessages(req ports.ExplainRequest) []Message {
	user := fmt.Sprintf("Explain: %s", req.Topic)
	if len(req.Path) > 1 {
		lineage := strings.Join(req.Path[:len(req.Path)-1], " > ")
		user = fmt.Sprintf(
			"The student reached this topic through: %s.\nAssume those are understood.\n\nExplain: %s",
			lineage, req.Topic)
	}
	return []Message{
		{Role: "system", Content: explainSystemPrompt},
		{Role: "user", Content: user},
	}
}

// buildPrerequisitesMessages asks for children per the expand mode
func buildPrerequisitesMessages(req ports.PrerequisitesRequest) []Message {
	var ask string
	switch req.Mode {
	case ports.ModeSubjectMastery:
		ask = fmt.Sprintf("List the subtopics someone must work through to master %q.", req.Topic)
	default:
		ask = fmt.Sprintf("List the prerequisite concepts someone must understand before learning %q.", req.Topic)
	}
	if len(req.ExistingTitles) > 0 {
		ask += fmt.Sprintf("\nDo not repeat any of these existing topics: %s.",
			strings.Join(req.ExistingTitles, ", "))
	}
	return []Message{
		{Role: "system", Content: prerequisitesSystemPrompt},
		{Role: "user", Content: ask},
	}
}

// buildChatMessages replays the node's conversation after grounding
// the model in the explanation text
func buildChatMessages(req ports.ChatRequest) []Message {
	messages := []Message{
		{Role: "system", Content: chatSystemPrompt},
		{Role: "system", Content: fmt.Sprintf("Topic: %s\n\nExplanation:\n%s", req.Topic, req.Content)},
	}
	for _, turn := range req.History {
		messages = append(messages, Message{Role: turn.Role, Content: turn.Content})
	}
	return append(messages, Message{Role: "user", Content: req.Question})
}

// buildTitleMessages asks for a session title
func buildTitleMessages(topic string) []Message {
	return []Message{
		{Role: "system", Content: titleSystemPrompt},
		{Role: "user", Content: topic},
	}
}
