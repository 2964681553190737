package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/relay/internal/api"
	"github.com/matheus3301/relay/internal/config"
	"github.com/matheus3301/relay/internal/instance"
	"github.com/matheus3301/relay/internal/status"
	"github.com/matheus3301/relay/internal/tui/client"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// testHome points RELAY_HOME at a short path to stay under the 104-char
// Unix socket limit on macOS.
func testHome(t *testing.T) {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "relay-d-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv(instance.HomeEnv, dir)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Store.Driver = "memory"
	return cfg
}

type running struct {
	app    *fx.App
	http   *HTTPServer
	client *client.Client
}

func startDaemon(t *testing.T, name string, cfg *config.Config) *running {
	t.Helper()
	var srv *HTTPServer
	app := fx.New(
		Module(Params{Instance: name, Config: cfg, Logger: zap.NewNop()}),
		fx.NopLogger,
		fx.Populate(&srv),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Stop(ctx)
	})

	c, err := client.New(instance.SocketPath(name))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return &running{app: app, http: srv, client: c}
}

func TestDaemonLifecycle(t *testing.T) {
	testHome(t)
	d := startDaemon(t, "test", testConfig())
	ctx := context.Background()

	st, err := d.client.Status(ctx)
	if err != nil {
		t.Fatalf("Status error = %v", err)
	}
	if st.Instance != "test" || st.State != string(status.Ready) {
		t.Errorf("status = %+v, want test/READY", st)
	}
	if st.StoreMode != "memory" || st.StoreFallback {
		t.Errorf("store = %s fallback=%v", st.StoreMode, st.StoreFallback)
	}

	// Send over REST, read back over gRPC.
	body, _ := json.Marshal(map[string]any{"senderId": 7, "receiverId": "-1", "content": "hello"})
	resp, err := http.Post("http://"+d.http.Addr()+"/api/messages", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /api/messages = %d, want 201", resp.StatusCode)
	}

	hist, err := d.client.History(ctx, "7", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist.Messages) != 1 || hist.Messages[0].ReceiverID != "admin" {
		t.Fatalf("history = %+v", hist.Messages)
	}
	conv, err := d.client.Conversations(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Conversations) != 1 || conv.Conversations[0].Peer.ID != "7" {
		t.Errorf("conversations = %+v", conv.Conversations)
	}

	resp, err = http.Get("http://" + d.http.Addr() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz = %d", resp.StatusCode)
	}
}

func TestStoreFallbackDegrades(t *testing.T) {
	testHome(t)
	cfg := testConfig()
	cfg.Store.Driver = "sqlite"
	cfg.Store.DSN = filepath.Join(t.TempDir(), "missing", "dir", "relay.db")
	d := startDaemon(t, "degraded", cfg)

	st, err := d.client.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.State != string(status.Degraded) || !st.StoreFallback || st.StoreMode != "memory" {
		t.Errorf("status = %+v, want DEGRADED on memory fallback", st)
	}
	if st.Reason == "" {
		t.Error("DEGRADED without a reason")
	}

	// The fallback store still serves the read path.
	if _, err := d.client.Send(context.Background(), &api.SendMessageRequest{ReceiverID: "u1", Content: "still here"}); err != nil {
		t.Fatal(err)
	}
	n, err := d.client.UnreadCount(context.Background(), "u1", "")
	if err != nil || n != 1 {
		t.Errorf("UnreadCount = %d, %v, want 1", n, err)
	}
}

func TestSecondDaemonFailsOnLock(t *testing.T) {
	testHome(t)
	startDaemon(t, "solo", testConfig())

	app := fx.New(
		Module(Params{Instance: "solo", Config: testConfig(), Logger: zap.NewNop()}),
		fx.NopLogger,
	)
	err := app.Err()
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = app.Start(ctx)
		_ = app.Stop(ctx)
	}
	if err == nil || !strings.Contains(err.Error(), "instance lock held") {
		t.Fatalf("second daemon error = %v, want lock held", err)
	}
}

func TestDefaultSQLiteStore(t *testing.T) {
	testHome(t)
	cfg := testConfig()
	cfg.Store.Driver = ""
	d := startDaemon(t, "disk", cfg)

	st, err := d.client.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.StoreMode != "sqlite" || st.State != string(status.Ready) {
		t.Errorf("status = %+v, want READY on sqlite", st)
	}
	if _, err := os.Stat(instance.DBPath("disk")); err != nil {
		t.Errorf("database not created in instance dir: %v", err)
	}
}
