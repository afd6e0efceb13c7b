package engine

// SetRename replaces the rename step, e.g. to force a cross-device failure.
func SetRename(m *Mover, fn func(oldpath, newpath string) error) {
	m.rename = fn
}

// SetFreeBytes replaces the free space query.
func SetFreeBytes(m *Mover, fn func(path string) (uint64, error)) {
	m.freeBytes = fn
}
