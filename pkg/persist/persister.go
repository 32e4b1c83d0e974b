package persist

// Persister pairs a file basename with a codec for one state type, so
// callers save and load without repeating either.
type Persister[T any] struct {
	basename string
	codec    Codec
}

// NewPersister returns a Persister writing basename+codec extension.
func NewPersister[T any](basename string, codec Codec) *Persister[T] {
	return &Persister[T]{basename: basename, codec: codec}
}

// Save builds the state via buildState and writes it under dir.
func (p *Persister[T]) Save(dir string, buildState func() *T) error {
	return SaveState(dir, p.basename, p.codec, buildState())
}

// Load reads the state from dir and hands it to restoreState. The
// callback never runs when the read or decode fails.
func (p *Persister[T]) Load(dir string, restoreState func(*T)) error {
	var state T
	if err := LoadState(dir, p.basename, p.codec, &state); err != nil {
		return err
	}
	restoreState(&state)
	return nil
}
