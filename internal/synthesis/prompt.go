package synthesis

import (
	"fmt"
	"strings"

	"github.com/minuted/minuted/internal/llm"
	"github.com/minuted/minuted/internal/storage"
)

const (
	emptyTranscriptionMarker = "[empty transcription]"
	noSummaryMarker          = "[no summary]"

	systemMessage = "You are an assistant working over a collection of meeting transcriptions."

	mapInstruction = "Summarize the following part %d of %d of a collection of transcribed recordings. " +
		"Be concise but keep every fact, decision, and open question.\n\n%s"

	reduceInstruction = "Here are summaries of consecutive parts of a collection of transcribed recordings:\n\n%s\n" +
		"Task: %s\n\n" +
		"Synthesize the part summaries into one coherent answer to the task."
)

// mergeContent renders the sessions' transcription and summary texts into one
// corpus string. Missing halves get explicit markers so the model knows what
// it is not seeing.
func mergeContent(contents []storage.SessionContent) string {
	parts := make([]string, len(contents))
	for i, c := range contents {
		transcription := c.Transcription
		if transcription == "" {
			transcription = emptyTranscriptionMarker
		}
		summary := c.Summary
		if summary == "" {
			summary = noSummaryMarker
		}
		parts[i] = fmt.Sprintf("Transcription:\n%s\nSummary:\n%s", transcription, summary)
	}
	return strings.Join(parts, "\n---\n")
}

// partition splits text into blocks of at most blockChars characters,
// preserving order. An empty text yields no blocks; the blocks concatenate
// back to the original text exactly.
func partition(text string, blockChars int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	blocks := make([]string, 0, (len(runes)+blockChars-1)/blockChars)
	for off := 0; off < len(runes); off += blockChars {
		end := min(off+blockChars, len(runes))
		blocks = append(blocks, string(runes[off:end]))
	}
	return blocks
}

func mapRequest(model string, temperature float32, index, total int, block string) llm.ChatRequest {
	return llm.ChatRequest{
		Model:       model,
		Temperature: temperature,
		Messages: []llm.Message{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: fmt.Sprintf(mapInstruction, index+1, total, block)},
		},
	}
}

func reduceRequest(model string, temperature float32, prompt string, blockSummaries []string) llm.ChatRequest {
	var sb strings.Builder
	for i, s := range blockSummaries {
		fmt.Fprintf(&sb, "Part %d:\n%s\n\n", i+1, s)
	}
	return llm.ChatRequest{
		Model:       model,
		Temperature: temperature,
		Messages: []llm.Message{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: fmt.Sprintf(reduceInstruction, sb.String(), prompt)},
		},
	}
}
