package fsops

// Deleter abstracts filesystem delete operations
// Enables mocking in tests to prove dry-run never touches the blob store
type Deleter interface {
	RemoveAll(path string) error
}
