package ai

import (
	"github.com/pkoukk/tiktoken-go"

	"ai-buddy-chat/internal/domain/ports/adapter"
)

// estimateTokens counts prompt tokens with tiktoken. Falls back to the
// cl100k_base encoding for models tiktoken doesn't know. The +4 per
// message approximates the chat-format framing overhead.
func estimateTokens(model string, messages []adapter.Message) (int, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, err
		}
	}
	n := 0
	for _, m := range messages {
		n += len(enc.Encode(m.Content, nil, nil)) + 4
	}
	return n, nil
}
