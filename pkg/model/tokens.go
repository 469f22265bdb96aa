package model

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

func initTokenEncoder() error {
	encoderOnce.Do(func() {
		// cl100k_base covers the GPT-4/3.5 family and is close enough for
		// the OpenAI-compatible providers we talk to.
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoderErr
}

// CountTokens counts the tokens in a text, falling back to a character
// heuristic when the encoder is unavailable.
func CountTokens(text string) int {
	if err := initTokenEncoder(); err != nil {
		return estimateTokens(text)
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

// CountTokensForMessages counts tokens for a message list including the
// per-message formatting overhead.
func CountTokensForMessages(messages []Message) int {
	if err := initTokenEncoder(); err != nil {
		total := 0
		for _, msg := range messages {
			total += 4 + estimateTokens(msg.Content)
		}
		return total
	}

	total := 0
	for _, msg := range messages {
		total += 4
		total += len(tokenEncoder.Encode(msg.Role, nil, nil))
		total += len(tokenEncoder.Encode(msg.Content, nil, nil))
	}
	// Reply priming overhead.
	return total + 3
}

// estimateTokens approximates token count as chars/4.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
