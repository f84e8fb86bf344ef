package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Open requests the selected line as an output driven low. Simulated
// selectors return a MemoryPin.
func Open(sel Selector, consumer string) (Pin, error) {
	if sel.Simulated {
		return NewMemoryPin(nil), nil
	}
	line, err := gpiocdev.RequestLine(sel.Chip, sel.Line,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(consumer),
	)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", sel, err)
	}
	return &cdevPin{line: line}, nil
}

type cdevPin struct {
	line *gpiocdev.Line
}

func (p *cdevPin) Set(level int) error {
	return p.line.SetValue(level)
}

func (p *cdevPin) Close() error {
	return p.line.Close()
}
