package e2e_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membergate/membergate/internal/api"
	"github.com/membergate/membergate/internal/factory"
	"github.com/membergate/membergate/internal/model"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(projectRoot, "bin", "memberctl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/memberctl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	// Create temp token file
	tokenFile := filepath.Join(t.TempDir(), "token")

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  tokenFile,
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func (r *cliRunner) runWithToken(token string, args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token", token,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	app      *factory.App
	server   *http.Server
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	// Create application
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	app, err := factory.New(factory.Config{Logger: logger})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		SessionManager: app.SessionManager,
		Provisioner:    app.Provisioner,
		CSRFGuard:      app.CSRFGuard,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		app:    app,
		server: server,
		addr:   serverURL,
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		},
	}
}

// createSlot provisions an invitation slot directly, standing in for the
// bootstrap slot a real deployment seeds at startup.
func (ts *testServer) createSlot(t *testing.T, permissions model.Permissions, group int, tempName string) string {
	t.Helper()

	slotID, err := ts.app.Provisioner.CreateSlot(context.Background(), permissions, group, tempName)
	require.NoError(t, err)
	return string(slotID)
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type authResponse struct {
	Username     string `json:"username"`
	SessionToken string `json:"session_token"`
}

type meResponse struct {
	Username        string   `json:"username"`
	Anonymous       bool     `json:"anonymous"`
	Permissions     []string `json:"permissions"`
	PermissionGroup int      `json:"permission_group"`
}

type memberListResponse struct {
	Members []struct {
		Username        string   `json:"username"`
		Unfilled        bool     `json:"unfilled"`
		Permissions     []string `json:"permissions"`
		PermissionGroup *int     `json:"permission_group"`
	} `json:"members"`
}

type slotResponse struct {
	SlotID   string `json:"slot_id"`
	TempName string `json:"temp_name"`
}

type sessionListResponse struct {
	Sessions []struct {
		Token       string `json:"token"`
		DeviceLabel string `json:"device_label"`
	} `json:"sessions"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_SignupLoginWhoami(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	slotID := ts.createSlot(t, model.PermViewMembers, 5, "invite-alice")

	// Fill the slot
	output, err := cli.run("signup", "--slot", slotID, "--user", "alice", "--pass", "hunter22")
	require.NoError(t, err, "output: %s", output)

	var signupResp authResponse
	require.NoError(t, json.Unmarshal([]byte(output), &signupResp))
	assert.Equal(t, "alice", signupResp.Username)
	assert.NotEmpty(t, signupResp.SessionToken)

	// whoami with the saved token
	output, err = cli.run("whoami")
	require.NoError(t, err, "output: %s", output)

	var me meResponse
	require.NoError(t, json.Unmarshal([]byte(output), &me))
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, 5, me.PermissionGroup)
	assert.Contains(t, me.Permissions, "VIEW_MEMBERS")

	// Fresh login, case-insensitive
	output, err = cli.run("login", "--user", "ALICE", "--pass", "hunter22")
	require.NoError(t, err, "output: %s", output)

	var loginResp authResponse
	require.NoError(t, json.Unmarshal([]byte(output), &loginResp))
	assert.Equal(t, "alice", loginResp.Username)
	assert.NotEqual(t, signupResp.SessionToken, loginResp.SessionToken)
}

func TestCLI_MemberManagement(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	adminSlot := ts.createSlot(t, model.PermAdmin, 0, "invite-admin")

	output, err := cli.run("signup", "--slot", adminSlot, "--user", "admin", "--pass", "hunter22")
	require.NoError(t, err, "output: %s", output)
	var adminAuth authResponse
	require.NoError(t, json.Unmarshal([]byte(output), &adminAuth))
	token := adminAuth.SessionToken

	// Invite a member
	output, err = cli.runWithToken(token, "member", "invite",
		"--name", "invite-bob", "--perms", "VIEW_MEMBERS", "--group", "5")
	require.NoError(t, err, "output: %s", output)

	var slot slotResponse
	require.NoError(t, json.Unmarshal([]byte(output), &slot))
	assert.NotEmpty(t, slot.SlotID)
	assert.Equal(t, "invite-bob", slot.TempName)

	// The slot shows up as unfilled in the listing
	output, err = cli.runWithToken(token, "member", "list")
	require.NoError(t, err, "output: %s", output)

	var list memberListResponse
	require.NoError(t, json.Unmarshal([]byte(output), &list))
	require.Len(t, list.Members, 2)
	assert.Equal(t, "invite-bob", list.Members[1].Username)
	assert.True(t, list.Members[1].Unfilled)

	// Fill it, then adjust the member's settings
	cli2 := &cliRunner{
		binaryPath: cli.binaryPath,
		serverURL:  cli.serverURL,
		tokenFile:  filepath.Join(t.TempDir(), "token2"),
	}
	output, err = cli2.run("signup", "--slot", slot.SlotID, "--user", "bob", "--pass", "hunter22")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.runWithToken(token, "member", "set-perms", "bob", "--perms", "VIEW_MEMBER_SETTINGS")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.runWithToken(token, "member", "set-group", "bob", "--group", "3")
	require.NoError(t, err, "output: %s", output)

	// Disable bob; a fresh slot id comes back
	output, err = cli.runWithToken(token, "member", "disable", "bob")
	require.NoError(t, err, "output: %s", output)

	var disabled slotResponse
	require.NoError(t, json.Unmarshal([]byte(output), &disabled))
	assert.NotEmpty(t, disabled.SlotID)
	assert.NotEqual(t, slot.SlotID, disabled.SlotID)

	// Bob can no longer log in
	output, err = cli2.run("login", "--user", "bob", "--pass", "hunter22")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "invalid")
}

func TestCLI_Uninvite(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	adminSlot := ts.createSlot(t, model.PermAdmin, 0, "invite-admin")

	output, err := cli.run("signup", "--slot", adminSlot, "--user", "admin", "--pass", "hunter22")
	require.NoError(t, err, "output: %s", output)
	var adminAuth authResponse
	require.NoError(t, json.Unmarshal([]byte(output), &adminAuth))
	token := adminAuth.SessionToken

	_, err = cli.runWithToken(token, "member", "invite",
		"--name", "invite-carol", "--group", "5")
	require.NoError(t, err)

	output, err = cli.runWithToken(token, "member", "uninvite", "invite-carol")
	require.NoError(t, err, "output: %s", output)

	var msg messageResponse
	require.NoError(t, json.Unmarshal([]byte(output), &msg))
	assert.Contains(t, msg.Message, "withdrawn")

	// A second withdrawal finds nothing
	output, err = cli.runWithToken(token, "member", "uninvite", "invite-carol")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "not found")
}

func TestCLI_Sessions(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	slotID := ts.createSlot(t, model.PermNone, 5, "invite-alice")

	output, err := cli.run("signup", "--slot", slotID, "--user", "alice", "--pass", "hunter22", "--device", "laptop")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.run("login", "--user", "alice", "--pass", "hunter22", "--device", "phone")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.run("sessions", "list")
	require.NoError(t, err, "output: %s", output)

	var list sessionListResponse
	require.NoError(t, json.Unmarshal([]byte(output), &list))
	require.Len(t, list.Sessions, 2)

	// Revoke the older session
	older := list.Sessions[1]
	output, err = cli.run("sessions", "revoke", older.Token)
	require.NoError(t, err, "output: %s", output)

	output, err = cli.run("sessions", "list")
	require.NoError(t, err, "output: %s", output)
	require.NoError(t, json.Unmarshal([]byte(output), &list))
	assert.Len(t, list.Sessions, 1)
}

func TestCLI_ErrorHandling(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// whoami without auth reports the anonymous caller
	output, err := cli.run("whoami")
	require.NoError(t, err, "output: %s", output)
	var me meResponse
	require.NoError(t, json.Unmarshal([]byte(output), &me))
	assert.True(t, me.Anonymous)

	// Listing sessions without auth is rejected
	output, err = cli.run("sessions", "list")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "authentication")

	// Wrong credentials
	output, err = cli.run("login", "--user", "nobody", "--pass", "wrong")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "invalid")
}
