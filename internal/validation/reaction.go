package validation

import (
	"errors"

	"github.com/forPelevin/gomoji"
)

// ErrInvalidReaction is returned if the reaction is not exactly one emoji.
var ErrInvalidReaction = errors.New("reaction is not valid, it must be a single emoji")

// ValidateReaction checks that the reaction only contains a single emoji.
func ValidateReaction(reaction string) error {
	found := gomoji.CollectAll(reaction)
	switch {
	case len(found) != 1:
		return ErrInvalidReaction
	case found[0].Character != reaction:
		// рядом с emoji есть посторонние символы
		return ErrInvalidReaction
	}
	return nil
}
