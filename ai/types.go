package ai

// Exchange is one earlier question and the answer given to it.
type Exchange struct {
	Question string
	Answer   string
}

// GenerateRequest carries everything the generation model sees for one turn.
type GenerateRequest struct {
	// Context is the assembled passages with citation markers.
	// Empty when no passage cleared the similarity threshold.
	Context string

	// Question is the user's question, verbatim.
	Question string

	// History holds prior exchanges, oldest first.
	History []Exchange
}
