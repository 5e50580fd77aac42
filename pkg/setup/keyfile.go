package setup

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Key files are stored as a 4-byte big-endian depth header followed by the
// gnark object's own WriteTo encoding, mirroring pkg/merkle's
// header-then-payload binary format (SPEC_FULL.md supplemented feature #4).

func saveKeyed(path string, depth int, obj io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.BigEndian, uint32(depth)); err != nil {
		return fmt.Errorf("write depth header: %w", err)
	}
	if _, err := obj.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func loadKeyed(path string, wantDepth int, obj io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var gotDepth uint32
	if err := binary.Read(f, binary.BigEndian, &gotDepth); err != nil {
		return fmt.Errorf("read depth header: %w", err)
	}
	if int(gotDepth) != wantDepth {
		return fmt.Errorf("depth mismatch: key file is for depth %d, want %d", gotDepth, wantDepth)
	}
	if _, err := obj.ReadFrom(f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
