package config

// testSystem provides a mock System for unit tests.
//
// ReadFile falls back to RealSystem so tests can use t.TempDir() fixtures.
// Getenv never consults the real environment: unset keys read as empty.
type testSystem struct {
	RealSystem

	ReadFileFunc func(name string) ([]byte, error)
	Env          map[string]string
}

func (s *testSystem) ReadFile(name string) ([]byte, error) {
	if s.ReadFileFunc != nil {
		return s.ReadFileFunc(name)
	}
	return s.RealSystem.ReadFile(name)
}

func (s *testSystem) Getenv(key string) string {
	return s.Env[key]
}
