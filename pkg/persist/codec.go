// Package persist stores a single state value as one file on disk,
// encoded by a pluggable codec. It backs the snapshot dump/restore
// commands, which capture a project's graph state around schema
// migrations.
package persist

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// defaultIndent is the indentation used for pretty-printed JSON dumps.
const defaultIndent = "  "

// Codec defines how state is serialized and deserialized.
type Codec interface {
	// Encode writes the state to the writer.
	Encode(w io.Writer, state any) error
	// Decode reads the state from the reader.
	Decode(r io.Reader, state any) error
	// Extension returns the file extension for this codec, dot included.
	Extension() string
}

// JSONCodec encodes state as JSON. Dumps are meant to be read and
// hand-edited by operators, so the default is pretty-printed.
type JSONCodec struct {
	// Indent specifies the indentation string. Empty string means compact JSON.
	Indent string
}

// NewJSONCodec returns a JSONCodec with the default two-space indent.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{Indent: defaultIndent}
}

func (c *JSONCodec) Encode(w io.Writer, state any) error {
	enc := json.NewEncoder(w)
	if c.Indent != "" {
		enc.SetIndent("", c.Indent)
	}
	if err := enc.Encode(state); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

func (c *JSONCodec) Decode(r io.Reader, state any) error {
	if err := json.NewDecoder(r).Decode(state); err != nil {
		return fmt.Errorf("json decode: %w", err)
	}
	return nil
}

func (c *JSONCodec) Extension() string { return ".json" }

// GobCodec encodes state in gob's binary format, for dumps that only a
// Go process will ever read back.
type GobCodec struct{}

// NewGobCodec returns a GobCodec.
func NewGobCodec() *GobCodec {
	return &GobCodec{}
}

func (c *GobCodec) Encode(w io.Writer, state any) error {
	if err := gob.NewEncoder(w).Encode(state); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func (c *GobCodec) Decode(r io.Reader, state any) error {
	if err := gob.NewDecoder(r).Decode(state); err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}
	return nil
}

func (c *GobCodec) Extension() string { return ".gob" }

// statePath is where SaveState/LoadState place basename's file in dir.
func statePath(dir, basename string, codec Codec) string {
	return filepath.Join(dir, basename+codec.Extension())
}

// SaveState writes state to dir/<basename><ext>. The write goes through
// a temp file in the same directory and a rename, so a crash mid-encode
// never leaves a truncated dump where a previous good one was.
func SaveState(dir, basename string, codec Codec, state any) error {
	path := statePath(dir, basename, codec)

	tmp, err := os.CreateTemp(dir, basename+".tmp-*")
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := codec.Encode(tmp, state); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// LoadState reads dir/<basename><ext> into state, which must be a
// pointer to the target value.
func LoadState(dir, basename string, codec Codec, state any) error {
	file, err := os.Open(statePath(dir, basename, codec))
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	if err := codec.Decode(file, state); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	return nil
}
