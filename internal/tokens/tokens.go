// Package tokens estimates prompt sizes with the cl100k_base encoding.
package tokens

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/set-night/visionchat/internal/domain"
	"github.com/tiktoken-go/tokenizer"
)

var (
	codec     tokenizer.Codec
	codecOnce sync.Once
	codecErr  error
)

func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// Estimate returns the token count of text.
func Estimate(text string) (int, error) {
	c, err := getCodec()
	if err != nil {
		return 0, fmt.Errorf("load tokenizer: %w", err)
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("encode prompt: %w", err)
	}
	return len(ids), nil
}

// Check rejects text longer than limit tokens. A limit of zero or less
// disables the check. If the tokenizer is unavailable the count falls back
// to one token per four characters.
func Check(text string, limit int) error {
	if limit <= 0 {
		return nil
	}
	n, err := Estimate(text)
	if err != nil {
		n = (utf8.RuneCountInString(text) + 3) / 4
	}
	if n > limit {
		return fmt.Errorf("%w: %d tokens, limit %d", domain.ErrPromptTooLong, n, limit)
	}
	return nil
}
