package prompt

import (
	"fmt"
	"strings"

	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/rag/retrieval"
)

// NotCoveredMarker is the phrase the model is told to use when the documents
// lack the answer. The pipeline's no-answer policy matches on it.
const NotCoveredMarker = "not covered"

// ContextualBuilder assembles one prompt from retrieved passages, short term
// conversation memory and the question.
type ContextualBuilder struct {
	passages []retrieval.Passage
	history  []llm.Message
	question string
	language string
}

func NewContextualBuilder(passages []retrieval.Passage, history []llm.Message, question, language string) *ContextualBuilder {
	return &ContextualBuilder{
		passages: passages,
		history:  history,
		question: question,
		language: language,
	}
}

func (b *ContextualBuilder) Build() string {
	var prompt strings.Builder

	b.writeReferenceMaterial(&prompt)
	b.writeTask(&prompt)
	b.writeGuidelines(&prompt)
	b.writeConversation(&prompt)
	b.writeUserQuery(&prompt)

	return prompt.String()
}

func (b *ContextualBuilder) writeReferenceMaterial(prompt *strings.Builder) {
	prompt.WriteString("<reference_material>\n")
	if len(b.passages) == 0 {
		prompt.WriteString("(no matching passages were found in the documents)\n")
	}
	for i, p := range b.passages {
		fmt.Fprintf(prompt, "--- REFERENCE %d (source: %s) ---\n", i+1, p.SourceID)
		prompt.WriteString(strings.TrimSpace(p.Text))
		prompt.WriteString("\n")
	}
	prompt.WriteString("</reference_material>\n\n")
}

func (b *ContextualBuilder) writeTask(prompt *strings.Builder) {
	prompt.WriteString("<task>\n")
	prompt.WriteString("You are an assistant answering questions about the user's uploaded documents.\n")
	prompt.WriteString("</task>\n\n")
}

func (b *ContextualBuilder) writeGuidelines(prompt *strings.Builder) {
	prompt.WriteString("<guidelines>\n")
	prompt.WriteString("1. Base your answer strictly on the reference material and the recent conversation\n")
	prompt.WriteString("2. Cite references as (Reference [N]) when you use them\n")
	fmt.Fprintf(prompt, "3. If the material does not contain the answer, reply that the topic is %s in the documents\n", NotCoveredMarker)
	if b.language != "" {
		fmt.Fprintf(prompt, "4. Answer in the language with code %q\n", b.language)
	}
	prompt.WriteString("</guidelines>\n\n")
}

func (b *ContextualBuilder) writeConversation(prompt *strings.Builder) {
	if len(b.history) == 0 {
		return
	}
	prompt.WriteString("<recent_conversation>\n")
	for _, msg := range b.history {
		role := "User"
		if msg.Role == llm.RoleAssistant || msg.Role == "model" {
			role = "Assistant"
		}
		fmt.Fprintf(prompt, "%s: %s\n", role, strings.TrimSpace(msg.Content))
	}
	prompt.WriteString("</recent_conversation>\n\n")
}

func (b *ContextualBuilder) writeUserQuery(prompt *strings.Builder) {
	prompt.WriteString("<question>\n")
	prompt.WriteString(strings.TrimSpace(b.question))
	prompt.WriteString("\n</question>\n")
}
