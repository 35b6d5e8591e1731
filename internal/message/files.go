package message

import "os"

// FileReader resolves body source files and attachment content. Delivery
// code reads through this interface so tests can substitute fixtures.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// OSFiles reads from the local filesystem.
type OSFiles struct{}

func (OSFiles) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
