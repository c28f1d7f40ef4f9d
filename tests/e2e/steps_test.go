package e2e

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/cucumber/godog"
)

// binaryPath holds the path to the compiled binary (set once in TestMain)
var binaryPath string

// serverURL is the base URL of the fake DICOMweb service (set once in TestMain)
var serverURL string

// testContext holds state for a single scenario
type testContext struct {
	tmpDir   string
	exitCode int
	output   string
}

// buildBinary compiles the dicomweb binary once
func buildBinary() (string, error) {
	tmpFile, err := os.CreateTemp("", "dicomweb-test-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpFile.Close()

	// Get the directory of this test file to find the project root
	_, thisFile, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(thisFile), "..", "..")

	cmd := exec.Command("go", "build", "-o", tmpFile.Name(), "./cmd/dicomweb")
	cmd.Dir = projectRoot
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build failed: %w\n%s", err, stderr.String())
	}

	return tmpFile.Name(), nil
}

// startFakeServer serves canned QIDO responses for the scenarios.
func startFakeServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/studies", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/dicom+json")
		w.Write([]byte(`[{
			"0020000D": {"vr": "UI", "Value": ["1.2.840.99999.1"]},
			"00100010": {"vr": "PN", "Value": [{"Alphabetic": "Doe^John"}]}
		}]`))
	})
	mux.HandleFunc("/series", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/dicom+json")
		w.Write([]byte(`[{"0020000E": {"vr": "UI", "Value": ["1.2.840.99999.1.1"]}}]`))
	})
	return httptest.NewServer(mux)
}

// TestMain compiles the binary and starts the fake service once before
// running all tests
func TestMain(m *testing.M) {
	var err error
	binaryPath, err = buildBinary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build binary: %v\n", err)
		os.Exit(1)
	}
	defer os.Remove(binaryPath)

	server := startFakeServer()
	serverURL = server.URL
	defer server.Close()

	code := m.Run()
	os.Exit(code)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	tc := &testContext{}

	// Setup: create temp directory before each scenario
	sc.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tmpDir, err := os.MkdirTemp("", "dicomweb-e2e-*")
		if err != nil {
			return ctx, err
		}
		tc.tmpDir = tmpDir
		return ctx, nil
	})

	// Teardown: cleanup temp directory after each scenario
	sc.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc.tmpDir != "" {
			os.RemoveAll(tc.tmpDir)
		}
		return ctx, nil
	})

	// Step definitions
	sc.Step(`^dicomweb is built$`, tc.dicomwebIsBuilt)
	sc.Step(`^I run dicomweb with "([^"]*)"$`, tc.iRunDicomwebWith)
	sc.Step(`^the exit code should be (\d+)$`, tc.theExitCodeShouldBe)
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^"([^"]*)" should exist$`, tc.shouldExist)
}

func (tc *testContext) dicomwebIsBuilt() error {
	if binaryPath == "" {
		return fmt.Errorf("binary not built")
	}
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		return fmt.Errorf("binary does not exist at %s", binaryPath)
	}
	return nil
}

func (tc *testContext) iRunDicomwebWith(args string) error {
	// Replace placeholders with the scenario temp directory and the fake
	// service URL
	args = strings.ReplaceAll(args, "{tmpdir}", tc.tmpDir)
	args = strings.ReplaceAll(args, "{server}", serverURL)

	// Split args respecting quotes
	argList := splitArgs(args)

	cmd := exec.Command(binaryPath, argList...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	tc.output = output.String()

	if exitErr, ok := err.(*exec.ExitError); ok {
		tc.exitCode = exitErr.ExitCode()
	} else if err != nil {
		return fmt.Errorf("failed to run command: %w", err)
	} else {
		tc.exitCode = 0
	}

	return nil
}

func (tc *testContext) theExitCodeShouldBe(expected int) error {
	if tc.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nOutput:\n%s", expected, tc.exitCode, tc.output)
	}
	return nil
}

func (tc *testContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(tc.output, expected) {
		return fmt.Errorf("output does not contain %q\nOutput:\n%s", expected, tc.output)
	}
	return nil
}

func (tc *testContext) shouldExist(path string) error {
	path = strings.ReplaceAll(path, "{tmpdir}", tc.tmpDir)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	return nil
}

// splitArgs splits a command line string into arguments
func splitArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}
