package popup

import (
	"io"
	"os"

	"github.com/aymanbagabas/go-osc52/v2"
)

// Clipboard writes text to the system clipboard.
type Clipboard interface {
	Copy(text string) error
}

// OSC52Clipboard copies through the terminal with an OSC 52 escape, which
// also works over SSH and inside tmux.
type OSC52Clipboard struct {
	W    io.Writer
	Tmux bool
}

func (c OSC52Clipboard) Copy(text string) error {
	w := c.W
	if w == nil {
		w = os.Stderr
	}
	seq := osc52.New(text)
	if c.Tmux || os.Getenv("TMUX") != "" {
		seq = seq.Tmux()
	}
	_, err := seq.WriteTo(w)
	return err
}
