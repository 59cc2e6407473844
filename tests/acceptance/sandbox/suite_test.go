package sandbox_test

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestAcceptance(t *testing.T) {
	RegisterFailHandler(Fail)

	suiteConfig, reporterConfig := GinkgoConfiguration()
	suiteConfig.ParallelTotal = 1
	suiteConfig.Timeout = 5 * time.Minute
	reporterConfig.Succinct = true

	RunSpecs(t, "Sandbox Acceptance Suite", suiteConfig, reporterConfig)
}

// testEnv is the single running sandboxd instance shared by every spec in
// this suite - scenarios isolate themselves from each other with a unique
// X-Sandbox-Session header rather than restarting the server per spec.
type testEnv struct {
	baseURL string
	cmd     *exec.Cmd
	tempDir string
	client  *http.Client
}

var env *testEnv

var _ = BeforeSuite(func() {
	By("starting sandboxd against the fixture OpenAPI document and scenario file")
	e, err := startSandboxd()
	Expect(err).NotTo(HaveOccurred())
	env = e

	By("waiting for /health to report ready")
	Eventually(func() error {
		resp, err := env.client.Get(env.baseURL + "/health")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("health returned %d", resp.StatusCode)
		}
		return nil
	}, 15*time.Second, 200*time.Millisecond).Should(Succeed())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.stop()
	}
})

func startSandboxd() (*testEnv, error) {
	projectRoot, err := filepath.Abs(filepath.Join("..", "..", ".."))
	if err != nil {
		return nil, err
	}
	fixtureDir := filepath.Join(projectRoot, "tests", "acceptance", "fixtures")

	port, err := freeTCPPort()
	if err != nil {
		return nil, fmt.Errorf("failed to find a free port: %w", err)
	}
	listen := fmt.Sprintf("127.0.0.1:%d", port)

	tempDir, err := os.MkdirTemp("", "sandboxd-acceptance-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp config dir: %w", err)
	}

	tmpl, err := os.ReadFile(filepath.Join(fixtureDir, "sandboxd.yaml"))
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to read sandboxd.yaml fixture: %w", err)
	}
	rendered := strings.NewReplacer(
		"{{LISTEN}}", listen,
		"{{OAS_PATH}}", filepath.Join(fixtureDir, "openapi.yaml"),
		"{{RULES_PATH}}", filepath.Join(fixtureDir, "rules.yaml"),
	).Replace(string(tmpl))

	configPath := filepath.Join(tempDir, "sandboxd.yaml")
	if err := os.WriteFile(configPath, []byte(rendered), 0o644); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to write rendered config: %w", err)
	}

	cmd := exec.Command("go", "run", ".", "-c", configPath)
	cmd.Dir = filepath.Join(projectRoot, "cmd", "sandboxd")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if os.Getenv("DEBUG") != "" {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}
	if err := cmd.Start(); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to start sandboxd: %w", err)
	}

	return &testEnv{
		baseURL: "http://" + listen,
		cmd:     cmd,
		tempDir: tempDir,
		client:  &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (e *testEnv) stop() {
	defer os.RemoveAll(e.tempDir)
	if e.cmd == nil || e.cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(e.cmd.Process.Pid)
	if err == nil {
		syscall.Kill(-pgid, syscall.SIGTERM)
	} else {
		e.cmd.Process.Signal(os.Interrupt)
	}

	done := make(chan error, 1)
	go func() { done <- e.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		e.cmd.Process.Kill()
		<-done
	}
}

func freeTCPPort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
