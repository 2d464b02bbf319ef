package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// Importing this package for side effects puts binaries into test mode.

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("SUPPLYOPS_TEST_MODE", "1")
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
