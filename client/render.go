package client

import (
	"fmt"
	"io"

	"github.com/gookit/color"

	"chat-relay/domain"
)

// Renderer prints relayed messages and console notices. With colours on, the
// timestamp is dimmed and the sender highlighted; otherwise everything falls
// back to the plain Display form.
type Renderer struct {
	out     io.Writer
	colours bool
}

func NewRenderer(out io.Writer, colours bool) Renderer {
	return Renderer{out: out, colours: colours}
}

func (r Renderer) Message(m domain.Message) {
	if !r.colours {
		fmt.Fprintln(r.out, m.Display())
		return
	}
	line := color.New(color.FgGreen, color.OpBold).Render(m.Sender) + " : " + m.Body
	if !m.Sent.IsZero() {
		line = color.New(color.FgDarkGray).Render(m.Sent.Format(domain.DisplayFormat)) + line
	}
	fmt.Fprintln(r.out, line)
}

// Notice reports a client-side condition, never a relayed message.
func (r Renderer) Notice(text string) {
	if !r.colours {
		fmt.Fprintln(r.out, text)
		return
	}
	fmt.Fprintln(r.out, color.New(color.FgYellow).Render(text))
}
