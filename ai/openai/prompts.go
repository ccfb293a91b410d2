package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/ragdir/ai"
)

const systemPrompt = `You are a careful assistant answering questions about a collection of local documents.
Answer only from the context you are given. Each passage in the context starts with a marker in
square brackets naming its source file; when you use a passage, mention that source.
Keep answers concise. Do not invent facts, file names or quotations.`

const contextPromptTemplate = `Context information is below.
---------------------
%s
---------------------
Given the context information, please answer the following question:
%s

If the answer cannot be found in the context, please say so.`

const noContextPromptTemplate = `No passage in the documents matched the following question:
%s

Say that the documents do not contain the answer. You may add what the user could search for instead.`

// buildUserPrompt renders the final human message for a request.
func buildUserPrompt(req ai.GenerateRequest) string {
	if strings.TrimSpace(req.Context) == "" {
		return fmt.Sprintf(noContextPromptTemplate, req.Question)
	}
	return fmt.Sprintf(contextPromptTemplate, req.Context, req.Question)
}
