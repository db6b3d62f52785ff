package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxMessageLen максимальная длина текста сообщения в символах (runes)
	MaxMessageLen = 4000
)

// ValidateMessageText проверяет, что текст сообщения можно отправить
// Пустые (или состоящие из пробелов) сообщения не допускаются
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message text cannot be empty")
	}

	if !utf8.ValidString(text) {
		return fmt.Errorf("message text must be valid UTF-8")
	}

	if n := utf8.RuneCountInString(text); n > MaxMessageLen {
		return fmt.Errorf("message text must not exceed %d characters, got %d", MaxMessageLen, n)
	}

	return nil
}
