// Package loadertest provides a contract suite that every loader.Loader
// implementation is expected to pass.
package loadertest

import (
	"context"
	"testing"

	"github.com/systmms/secretbox/pkg/loader"
)

// ContractTest describes the loader under test.
type ContractTest struct {
	// CreateLoader returns a fresh loader instance.
	CreateLoader func(t *testing.T) loader.Loader

	// Options are passed to LoadValues. Leave nil for loaders that ignore
	// options.
	Options loader.Options

	// ExpectLoad asserts that LoadValues with Options returns true and
	// produces at least one value.
	ExpectLoad bool
}

// RunContractTests runs the standard loader contract suite.
func RunContractTests(t *testing.T, contract ContractTest) {
	t.Helper()

	t.Run("Contract", func(t *testing.T) {
		t.Run("Name", func(t *testing.T) {
			testName(t, contract)
		})

		t.Run("ResetYieldsEmpty", func(t *testing.T) {
			testResetYieldsEmpty(t, contract)
		})

		t.Run("ResetIdempotent", func(t *testing.T) {
			testResetIdempotent(t, contract)
		})

		t.Run("GetValuesReturnsCopy", func(t *testing.T) {
			testGetValuesReturnsCopy(t, contract)
		})

		if contract.ExpectLoad {
			t.Run("Load", func(t *testing.T) {
				testLoad(t, contract)
			})
		}
	})
}

func testName(t *testing.T, contract ContractTest) {
	l := contract.CreateLoader(t)

	name := l.Name()
	if name == "" {
		t.Error("Loader.Name() returned empty string")
	}
	if name != l.Name() {
		t.Errorf("Loader.Name() not consistent: %q != %q", name, l.Name())
	}
}

func testResetYieldsEmpty(t *testing.T, contract ContractTest) {
	l := contract.CreateLoader(t)
	l.LoadValues(context.Background(), contract.Options)

	l.ResetValues()

	values := l.GetValues()
	if values == nil {
		t.Fatal("GetValues() returned nil after reset")
	}
	if len(values) != 0 {
		t.Errorf("GetValues() after reset has %d entries, want 0", len(values))
	}
}

func testResetIdempotent(t *testing.T, contract ContractTest) {
	l := contract.CreateLoader(t)

	l.ResetValues()
	l.ResetValues()

	if got := len(l.GetValues()); got != 0 {
		t.Errorf("GetValues() after double reset has %d entries, want 0", got)
	}
}

func testGetValuesReturnsCopy(t *testing.T, contract ContractTest) {
	l := contract.CreateLoader(t)
	l.LoadValues(context.Background(), contract.Options)

	before := len(l.GetValues())
	values := l.GetValues()
	values["__loadertest_injected__"] = "x"

	if _, leaked := l.GetValues()["__loadertest_injected__"]; leaked {
		t.Error("mutating the GetValues() result changed the loader's mapping")
	}
	if got := len(l.GetValues()); got != before {
		t.Errorf("GetValues() length changed from %d to %d", before, got)
	}
}

func testLoad(t *testing.T, contract ContractTest) {
	l := contract.CreateLoader(t)

	if !l.LoadValues(context.Background(), contract.Options) {
		t.Fatal("LoadValues() returned false, want true")
	}
	if len(l.GetValues()) == 0 {
		t.Error("LoadValues() returned true but GetValues() is empty")
	}
}
