package config

import "os"

// System abstracts the OS reads needed to load configuration, so tests can
// supply files and environment without touching the process state.
type System interface {
	ReadFile(name string) ([]byte, error)
	Getenv(key string) string
}

// RealSystem implements System using the OS.
type RealSystem struct{}

// ReadFile reads the named file and returns the contents.
func (RealSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Getenv returns the value of the environment variable named by key.
func (RealSystem) Getenv(key string) string {
	return os.Getenv(key)
}
