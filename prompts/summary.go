package prompts

// DefaultSummarySystemPrompt frames the model as an abstractive summarizer.
const DefaultSummarySystemPrompt = `You are a precise summarization engine.
You write faithful, self-contained summaries in plain prose.
Never add facts that are not in the source text. Never mention that you are summarizing.`

// DefaultSummaryPrompt asks for a summary within a word range.
// Variables: text, min_length, max_length.
var DefaultSummaryPrompt = NewPromptTemplate(
	`Summarize the following text in {{.min_length}} to {{.max_length}} words.
Reply with the summary only.

Text:
{{.text}}

Summary:`)
