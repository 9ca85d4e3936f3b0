package responseformat

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Supported machine readable formats.
const (
	JSON    = "json"
	MsgPack = "msgpack"
)

// Formatter encodes tool output in JSON or MessagePack format
type Formatter struct {
	format string
}

// NewFormatter creates a formatter for format. JSON is the default.
func NewFormatter(format string) (*Formatter, error) {
	switch format {
	case "", JSON:
		return &Formatter{format: JSON}, nil
	case MsgPack:
		return &Formatter{format: MsgPack}, nil
	}
	return nil, fmt.Errorf("unsupported output format %q, use %s or %s", format, JSON, MsgPack)
}

// Format returns the selected format.
func (f *Formatter) Format() string {
	return f.format
}

// Write encodes data to w.
func (f *Formatter) Write(w io.Writer, data any) error {
	if f.format == MsgPack {
		return f.writeMsgPack(w, data)
	}
	return f.writeJSON(w, data)
}

func (f *Formatter) writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *Formatter) writeMsgPack(w io.Writer, data any) error {
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}
