package engine

import "os"

// mkdirAll is the engine's sole filesystem-creation primitive; callers
// serialize through Engine.ensureDir.
func mkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
