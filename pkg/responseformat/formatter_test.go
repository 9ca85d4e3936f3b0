package responseformat

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type row struct {
	Band string `json:"band"`
	Rows int    `json:"rows"`
}

func TestFormats(t *testing.T) {
	in := []row{{"B02", 549}, {"SCL", 549}}

	f, err := NewFormatter("")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf, in); err != nil {
		t.Fatal(err)
	}
	var fromJSON []row
	if err := json.Unmarshal(buf.Bytes(), &fromJSON); err != nil {
		t.Fatal(err)
	}
	if len(fromJSON) != 2 || fromJSON[1].Band != "SCL" {
		t.Errorf("json round trip = %+v", fromJSON)
	}

	f, err = NewFormatter(MsgPack)
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err := f.Write(&buf, in); err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	if err := msgpack.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 2 || decoded[0]["band"] != "B02" {
		t.Errorf("msgpack keys do not follow json tags: %v", decoded)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := NewFormatter("xml"); err == nil {
		t.Fatal("xml accepted")
	}
}
