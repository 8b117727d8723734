package storage

// Store is a string-keyed, string-valued key-value store scoped to one origin.
type Store interface {
	Get(key string) (value string, ok bool, err error) // Get returns the value for key and whether it was present
	Set(key, value string) error                       // Set writes value under key, replacing any previous value
	Remove(key string) error                           // Remove deletes key; removing a missing key is not an error
}

// Batcher is implemented by stores that can apply several writes atomically.
//
// Readers never observe a state where only part of set/remove has been applied.
type Batcher interface {
	Apply(set map[string]string, remove []string) error
}
