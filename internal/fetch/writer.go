package fetch

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/roach88/r2s/internal/spatial"
)

// FrameWriter persists a frame and returns where it went.
type FrameWriter interface {
	WriteFrame(f *spatial.Frame) (string, error)
}

// DirWriter writes frames as <Root>/<kind>/<time>.json.
type DirWriter struct {
	Root string
}

// FramePath returns the path of the frame of kind at time under root.
func FramePath(root, kind string, time int) string {
	return filepath.Join(root, kind, strconv.Itoa(time)+".json")
}

// WriteFrame implements FrameWriter.
func (w DirWriter) WriteFrame(f *spatial.Frame) (string, error) {
	path := FramePath(w.Root, f.Kind, f.Time)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}
	bw := bufio.NewWriter(file)
	if err := spatial.WriteFrame(bw, f); err != nil {
		file.Close()
		return "", fmt.Errorf("write frame %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return "", fmt.Errorf("write frame %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("write frame %s: %w", path, err)
	}
	return path, nil
}

// ReadFrameFile reads a frame written by DirWriter.
func ReadFrameFile(path string) (*spatial.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	defer file.Close()
	f, err := spatial.ReadFrame(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
