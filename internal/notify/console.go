package notify

import (
	"context"
	"fmt"
	"io"
)

// Console prints reports to a writer, blank-line separated so they stand
// apart from surrounding log output. Used for dry runs and notify tests.
type Console struct {
	w io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Send(_ context.Context, message string) error {
	_, err := fmt.Fprintf(c.w, "\n%s\n\n", message)
	return err
}
