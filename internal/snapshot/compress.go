package snapshot

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// compressFile writes a zstd-compressed copy of src to dst.
func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("compress: open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("compress: create dest: %w", err)
	}
	defer out.Close()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("compress: create encoder: %w", err)
	}
	if _, err := io.Copy(enc, in); err != nil {
		_ = enc.Close()
		return fmt.Errorf("compress: copy: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("compress: close encoder: %w", err)
	}
	return out.Sync()
}

// decompressTo streams a zstd-compressed r into a new file at dst.
func decompressTo(r io.Reader, dst string) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("decompress: create decoder: %w", err)
	}
	defer dec.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("decompress: create dest: %w", err)
	}
	if _, err := io.Copy(out, dec); err != nil {
		_ = out.Close()
		return fmt.Errorf("decompress: copy: %w", err)
	}
	return out.Close()
}
