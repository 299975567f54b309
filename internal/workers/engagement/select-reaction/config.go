// internal/workers/engagement/select-reaction/config.go
package selectreaction

import "fmt"

type Config struct {
	Reactions []string
}

func (c *Config) Validate() error {
	if len(c.Reactions) == 0 {
		return fmt.Errorf("reactions cannot be empty")
	}
	for i, r := range c.Reactions {
		if r == "" {
			return fmt.Errorf("reaction %d is empty", i)
		}
	}
	return nil
}
