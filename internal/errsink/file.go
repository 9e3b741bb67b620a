package errsink

import (
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"

	"bibformat/internal/formaterror"
)

// FileBackend appends every registered error, one JSON object per line, to
// a single append-only file.
type FileBackend struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileBackend opens (creating if needed) path for appending.
func NewFileBackend(path string) (*FileBackend, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open errsink file %s: %w", path, err)
	}
	return &FileBackend{file: f}, nil
}

func (b *FileBackend) Name() string { return "file" }

func (b *FileBackend) Send(err *formaterror.FormatError) error {
	buf, marshalErr := json.MarshalWithOption(err, json.UnorderedMap())
	if marshalErr != nil {
		return marshalErr
	}
	buf = append(buf, '\n')

	b.mu.Lock()
	defer b.mu.Unlock()
	_, writeErr := b.file.Write(buf)
	return writeErr
}

func (b *FileBackend) Shutdown() {
	_ = b.file.Close()
}
