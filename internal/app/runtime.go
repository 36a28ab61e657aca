package app

import (
	"os"
	"sync"
)

// TestModeEnv disables the runtime side effects of the commands when set to "1".
const TestModeEnv = "SMA_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether the commands should skip connecting to
// PostgreSQL and Redis. The environment is read once per process.
func InTestMode() bool {
	return testMode()
}
