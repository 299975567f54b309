// internal/workers/engagement/select-reaction/selector.go
package selectreaction

import (
	"math/rand"

	apperrors "wallpaper-bot/internal/common/errors"
)

const (
	TaskType = "select-reaction"
)

// Selector picks post reactions from a list fixed at construction.
type Selector struct {
	reactions []string
	index     map[string]struct{}
}

func NewSelector(cfg *Config) (*Selector, error) {
	if cfg == nil {
		return nil, apperrors.NewInvalidConfigurationError("reaction config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewInvalidConfigurationError(err.Error())
	}
	reactions := append([]string(nil), cfg.Reactions...)
	index := make(map[string]struct{}, len(reactions))
	for _, r := range reactions {
		index[r] = struct{}{}
	}
	return &Selector{reactions: reactions, index: index}, nil
}

// Pick returns one reaction chosen by intn, which must return a value in [0, n).
// A nil intn uses math/rand.
func (s *Selector) Pick(intn func(n int) int) string {
	if intn == nil {
		intn = rand.Intn
	}
	return s.reactions[intn(len(s.reactions))]
}

// Random is Pick with the package-level source.
func (s *Selector) Random() string {
	return s.Pick(nil)
}

func (s *Selector) IsSupported(reaction string) bool {
	_, ok := s.index[reaction]
	return ok
}

// Reactions returns a copy of the configured list.
func (s *Selector) Reactions() []string {
	return append([]string(nil), s.reactions...)
}
