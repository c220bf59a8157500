package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("FULFILLMENT_TEST_MODE", "1")
		if os.Getenv("GOTENBERG_URL") == "" {
			_ = os.Setenv("GOTENBERG_URL", "http://127.0.0.1:0")
		}
		if os.Getenv("ACCOUNTING_CLIENT_SECRET") == "" {
			_ = os.Setenv("ACCOUNTING_CLIENT_SECRET", "test-secret")
		}
		if os.Getenv("ACCOUNTING_REFRESH_TOKEN") == "" {
			_ = os.Setenv("ACCOUNTING_REFRESH_TOKEN", "test-refresh")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
