package sources

import (
	"fmt"
	"strings"
)

// Kind identifies one image provider. The zero value is not a valid kind.
type Kind int

const (
	KindUnsplash Kind = iota + 1
	KindPexels
	KindPixabay
	KindDemo
)

// Priority is the fixed attempt order for credentialed providers.
var Priority = []Kind{KindUnsplash, KindPexels, KindPixabay}

func (k Kind) String() string {
	switch k {
	case KindUnsplash:
		return "unsplash"
	case KindPexels:
		return "pexels"
	case KindPixabay:
		return "pixabay"
	case KindDemo:
		return "demo"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a source name back to its Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "unsplash":
		return KindUnsplash, nil
	case "pexels":
		return KindPexels, nil
	case "pixabay":
		return KindPixabay, nil
	case "demo":
		return KindDemo, nil
	default:
		return 0, fmt.Errorf("unknown source %q", name)
	}
}
