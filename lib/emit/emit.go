// Package emit delivers schema-tagged records downstream. The wire shape
// follows the singer convention of newline-delimited SCHEMA / RECORD /
// STATE messages so the output can be piped straight into a loader.
package emit

import (
	"encoding/json"
	"io"
	"time"
)

type Emitter interface {
	// Schema announces a stream's effective schema. It must be called
	// before the stream's first Record.
	Schema(stream string, schema map[string]any, keyProperties, bookmarkProperties []string) error
	Record(stream string, record map[string]any) error
	State(value map[string]any) error
}

type message struct {
	Type               string         `json:"type"`
	Stream             string         `json:"stream,omitempty"`
	Schema             map[string]any `json:"schema,omitempty"`
	KeyProperties      []string       `json:"key_properties,omitempty"`
	BookmarkProperties []string       `json:"bookmark_properties,omitempty"`
	Record             map[string]any `json:"record,omitempty"`
	TimeExtracted      string         `json:"time_extracted,omitempty"`
	Value              map[string]any `json:"value,omitempty"`
}

// Writer emits messages as JSON lines on an io.Writer, stdout in the
// CLI. It is not safe for concurrent use; streams are synced
// sequentially.
type Writer struct {
	enc *json.Encoder
	now func() time.Time
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		enc: json.NewEncoder(w),
		now: time.Now,
	}
}

func (w *Writer) Schema(stream string, schema map[string]any, keyProperties, bookmarkProperties []string) error {
	return w.enc.Encode(message{
		Type:               "SCHEMA",
		Stream:             stream,
		Schema:             schema,
		KeyProperties:      keyProperties,
		BookmarkProperties: bookmarkProperties,
	})
}

func (w *Writer) Record(stream string, record map[string]any) error {
	return w.enc.Encode(message{
		Type:          "RECORD",
		Stream:        stream,
		Record:        record,
		TimeExtracted: w.now().UTC().Format(time.RFC3339),
	})
}

func (w *Writer) State(value map[string]any) error {
	return w.enc.Encode(message{
		Type:  "STATE",
		Value: value,
	})
}

// Collector is an in-memory Emitter for tests.
type Collector struct {
	Schemas map[string]map[string]any
	Records map[string][]map[string]any
	States  []map[string]any
}

func NewCollector() *Collector {
	return &Collector{
		Schemas: map[string]map[string]any{},
		Records: map[string][]map[string]any{},
	}
}

func (c *Collector) Schema(stream string, schema map[string]any, _, _ []string) error {
	c.Schemas[stream] = schema
	return nil
}

func (c *Collector) Record(stream string, record map[string]any) error {
	c.Records[stream] = append(c.Records[stream], record)
	return nil
}

func (c *Collector) State(value map[string]any) error {
	c.States = append(c.States, value)
	return nil
}
