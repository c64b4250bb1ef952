package backend

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed host.py
var hostScript []byte

// InstallHost writes the host script to path unless an identical copy is
// already there.
func InstallHost(path string) error {
	if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, hostScript) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create host dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, hostScript, 0o600); err != nil {
		return fmt.Errorf("write host script: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("install host script: %w", err)
	}
	return nil
}

// HostCommand builds the argv that runs the installed host against a module.
func HostCommand(python, hostPath, modulePath, className string) []string {
	return []string{python, "-u", hostPath, modulePath, className}
}
