package retriever

import (
	"fmt"
	"strings"

	"github.com/arbiterlabs/answerd/internal/index"
)

// systemInstruction constrains the model to the supplied excerpts. The
// phrasing forbids outside knowledge and names the exact refusal
// sentence so "I don't know" responses stay machine-recognizable.
const systemInstruction = `You are a question-answering assistant for a closed knowledge base.
Answer using ONLY the context excerpts below. Do not use outside knowledge.
If the context does not contain the information needed to answer, reply exactly:
"I don't know based on the available documents."
Cite nothing that is not in the context.`

// buildContext joins the surviving hits into a context block, each
// excerpt tagged with its originating document so answers stay
// attributable.
func buildContext(hits []index.Hit) string {
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[source: %s]\n%s", h.Record.Origin, h.Record.Text)
	}
	return b.String()
}

// buildPrompt assembles the final prompt: instruction, context block,
// question.
func buildPrompt(question string, hits []index.Hit) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\nContext:\n")
	b.WriteString(buildContext(hits))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}
