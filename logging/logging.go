package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

const defaultMaxSize = 5 * 1024 * 1024 // 5MB

// FileWriter mirrors log output to a size-capped file next to stdout.
// When the file grows past the cap it is rotated once, replacing the
// previous backup.
type FileWriter struct {
	mu   sync.Mutex
	file *os.File
	path string
	size int64
	cap  int64
}

// Setup points the standard logger at stdout plus a rotating file.
func Setup(path string) (*FileWriter, error) {
	w, err := newFileWriter(path, defaultMaxSize)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, w))
	return w, nil
}

func newFileWriter(path string, cap int64) (*FileWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	return &FileWriter{file: f, path: path, size: size, cap: cap}, nil
}

func (w *FileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if w.size > w.cap {
		w.rotate()
	}
	return n, err
}

func (w *FileWriter) rotate() {
	w.file.Close()
	os.Rename(w.path, w.path+".old")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	w.file = f
	w.size = 0
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
