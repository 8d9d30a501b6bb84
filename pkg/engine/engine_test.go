// Copyright 2025 The Outboard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/outboardhq/outboard/internal/bridgetest"
	"github.com/outboardhq/outboard/pkg/errors"
)

// clearEnv keeps ambient configuration out of the tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OUTBOARD_BRIDGE_URL",
		"OUTBOARD_BRIDGE_AUTO_START",
		"OUTBOARD_BRIDGE_DIR",
		"OUTBOARD_SCHEMA_PATH",
		"OUTBOARD_CONNECT_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

// newEngine builds an engine against a fake bridge with auto-start off.
func newEngine(t *testing.T, srv *bridgetest.Server, opts ...Option) *Engine {
	t.Helper()
	clearEnv(t)

	opts = append([]Option{WithServiceURL(srv.URL), WithAutoStart(false)}, opts...)
	eng, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return eng
}

// connectedEngine builds and connects an engine, disconnecting at cleanup.
func connectedEngine(t *testing.T, srv *bridgetest.Server, opts ...Option) *Engine {
	t.Helper()
	eng := newEngine(t, srv, opts...)
	if err := eng.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { eng.Disconnect(context.Background()) })
	return eng
}

func TestNew_RejectsBadURL(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		url  string
	}{
		{"unsupported scheme", "ftp://localhost:4466"},
		{"missing host", "http://"},
		{"garbage", "://nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(WithServiceURL(tt.url)); err == nil {
				t.Errorf("New(%q) expected error", tt.url)
			}
		})
	}
}

func TestNew_EnvironmentDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OUTBOARD_BRIDGE_URL", "http://localhost:9977")
	t.Setenv("OUTBOARD_BRIDGE_AUTO_START", "false")

	eng, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if eng.ServiceURL() != "http://localhost:9977" {
		t.Errorf("ServiceURL() = %q, want env override", eng.ServiceURL())
	}
	if eng.autoStart {
		t.Error("autoStart = true, want disabled by env")
	}
}

func TestNew_OptionsBeatEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("OUTBOARD_BRIDGE_URL", "http://localhost:9977")

	eng, err := New(WithServiceURL("http://localhost:4000"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if eng.ServiceURL() != "http://localhost:4000" {
		t.Errorf("ServiceURL() = %q, want the option value", eng.ServiceURL())
	}
}

func TestNew_RejectsNonPositiveTimeout(t *testing.T) {
	clearEnv(t)
	if _, err := New(WithConnectTimeout(0)); err == nil {
		t.Error("New(WithConnectTimeout(0)) expected error")
	}
}

func TestEngine_ConnectLifecycle(t *testing.T) {
	srv := bridgetest.New(t)
	eng := newEngine(t, srv)

	if got := eng.State(); got != Disconnected {
		t.Fatalf("State() = %v, want %v", got, Disconnected)
	}

	if err := eng.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got := eng.State(); got != Connected {
		t.Errorf("State() = %v, want %v", got, Connected)
	}

	// Connecting twice is a caller bug, reported as such.
	err := eng.Connect(context.Background())
	var already *errors.AlreadyConnectedError
	if !errors.As(err, &already) {
		t.Errorf("second Connect() error = %T, want *AlreadyConnectedError", err)
	}

	if err := eng.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if got := eng.State(); got != Disconnected {
		t.Errorf("State() = %v, want %v", got, Disconnected)
	}

	// Disconnecting a disconnected engine is fine.
	if err := eng.Disconnect(context.Background()); err != nil {
		t.Errorf("second Disconnect() error = %v, want nil", err)
	}
}

func TestEngine_Reconnect(t *testing.T) {
	srv := bridgetest.New(t)
	eng := newEngine(t, srv)

	for i := 0; i < 2; i++ {
		if err := eng.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() #%d error = %v", i+1, err)
		}
		if err := eng.Disconnect(context.Background()); err != nil {
			t.Fatalf("Disconnect() #%d error = %v", i+1, err)
		}
	}
}

func TestEngine_Connect_PollsUntilReady(t *testing.T) {
	srv := bridgetest.New(t, bridgetest.WithStatusOKAfter(3))
	eng := newEngine(t, srv)

	if err := eng.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer eng.Disconnect(context.Background())

	// Ready on the third poll means exactly three status requests: the
	// loop must not probe faster than its interval nor skip the first.
	if got := srv.StatusCalls(); got != 3 {
		t.Errorf("StatusCalls() = %d, want 3", got)
	}
}

func TestEngine_Connect_TimeoutCarriesLastCause(t *testing.T) {
	srv := bridgetest.New(t,
		bridgetest.WithStatusOKAfter(1<<30),
		bridgetest.WithStatusErrors("datasource db unreachable"),
	)
	eng := newEngine(t, srv, WithConnectTimeout(400*time.Millisecond))

	err := eng.Connect(context.Background())
	var connErr *errors.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect() error = %T (%v), want *ConnectionError", err, err)
	}
	if connErr.Cause == nil || !strings.Contains(connErr.Cause.Error(), "datasource db unreachable") {
		t.Errorf("Cause = %v, want the bridge's last reported error", connErr.Cause)
	}
	if got := eng.State(); got != Disconnected {
		t.Errorf("State() after failed connect = %v, want %v", got, Disconnected)
	}
}

func TestEngine_Connect_CtxCancelBeatsTimeout(t *testing.T) {
	srv := bridgetest.New(t, bridgetest.WithStatusOKAfter(1<<30))
	eng := newEngine(t, srv, WithConnectTimeout(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := eng.Connect(ctx)
	if err == nil {
		t.Fatal("Connect() expected error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Connect() took %v, want the caller's deadline to bound it", elapsed)
	}
}

func TestEngine_Connect_AutoStartAbortsOnMissingBundle(t *testing.T) {
	clearEnv(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	eng, err := New(
		WithServiceURL(fmt.Sprintf("http://127.0.0.1:%d", port)),
		WithAutoStart(true),
		WithBridgeDir(filepath.Join(t.TempDir(), "absent")),
		WithConnectTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	start := time.Now()
	connectErr := eng.Connect(context.Background())

	var notFound *errors.LocatorNotFoundError
	if !errors.As(connectErr, &notFound) {
		t.Fatalf("Connect() error = %T (%v), want *LocatorNotFoundError", connectErr, connectErr)
	}
	// Environmental failures are final: no point burning the timeout.
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Connect() took %v, want an immediate abort", elapsed)
	}
	if got := eng.State(); got != Disconnected {
		t.Errorf("State() = %v, want %v", got, Disconnected)
	}
}

func TestEngine_OpsWhileDisconnected(t *testing.T) {
	srv := bridgetest.New(t)
	eng := newEngine(t, srv)

	assertNotConnected := func(t *testing.T, err error) {
		t.Helper()
		var notConnected *errors.NotConnectedError
		if !errors.As(err, &notConnected) {
			t.Errorf("error = %T (%v), want *NotConnectedError", err, err)
		}
	}

	t.Run("query", func(t *testing.T) {
		_, err := eng.Query(context.Background(), `{"q":1}`, "")
		assertNotConnected(t, err)
	})
	t.Run("start transaction", func(t *testing.T) {
		_, err := eng.StartTransaction(context.Background(), "")
		assertNotConnected(t, err)
	})
	t.Run("commit", func(t *testing.T) {
		assertNotConnected(t, eng.CommitTransaction(context.Background(), "tx_1"))
	})
	t.Run("rollback", func(t *testing.T) {
		assertNotConnected(t, eng.RollbackTransaction(context.Background(), "tx_1"))
	})
	t.Run("metrics", func(t *testing.T) {
		_, err := eng.Metrics(context.Background(), MetricsFormatJSON, nil)
		assertNotConnected(t, err)
	})

	// None of those may have touched the wire.
	if got := srv.QueryCalls(); got != 0 {
		t.Errorf("QueryCalls() = %d, want 0", got)
	}
}

func TestEngine_Query(t *testing.T) {
	srv := bridgetest.New(t)
	eng := connectedEngine(t, srv)

	payload := `{"action":"findMany","model":"User"}`
	result, err := eng.Query(context.Background(), payload, "")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if string(result) != payload {
		t.Errorf("Query() = %s, want the echoed payload", result)
	}

	rec, ok := srv.LastQuery()
	if !ok {
		t.Fatal("fake bridge recorded no query")
	}
	if rec.TransactionID != "" {
		t.Errorf("TransactionID = %q, want empty outside a transaction", rec.TransactionID)
	}
}

func TestEngine_Query_TransactionHeader(t *testing.T) {
	srv := bridgetest.New(t)
	eng := connectedEngine(t, srv)

	if _, err := eng.Query(context.Background(), `{"q":1}`, "tx_123"); err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	rec, _ := srv.LastQuery()
	if rec.TransactionID != "tx_123" {
		t.Errorf("TransactionID = %q, want %q", rec.TransactionID, "tx_123")
	}
}

func TestEngine_Query_BridgeErrorSurfaces(t *testing.T) {
	srv := bridgetest.New(t)
	eng := connectedEngine(t, srv)

	_, err := eng.Query(context.Background(), "", "")
	var transportErr *errors.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Query() error = %T (%v), want *TransportError", err, err)
	}
	if transportErr.StatusCode != 400 {
		t.Errorf("StatusCode = %d, want 400", transportErr.StatusCode)
	}
}

func TestEngine_ConcurrentQueries(t *testing.T) {
	srv := bridgetest.New(t)
	eng := connectedEngine(t, srv)

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	errCh := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				payload := fmt.Sprintf(`{"worker":%d,"seq":%d}`, w, i)
				if _, err := eng.Query(context.Background(), payload, ""); err != nil {
					errCh <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent Query() error = %v", err)
	}
	if got := srv.QueryCalls(); got != workers*perWorker {
		t.Errorf("QueryCalls() = %d, want %d", got, workers*perWorker)
	}
}

func TestEngine_TransactionLifecycle(t *testing.T) {
	srv := bridgetest.New(t)
	eng := connectedEngine(t, srv)
	ctx := context.Background()

	tx, err := eng.StartTransaction(ctx, "")
	if err != nil {
		t.Fatalf("StartTransaction() error = %v", err)
	}
	if tx == "" {
		t.Fatal("StartTransaction() returned an empty id")
	}

	if _, err := eng.Query(ctx, `{"q":1}`, tx); err != nil {
		t.Fatalf("Query() in transaction error = %v", err)
	}
	rec, _ := srv.LastQuery()
	if rec.TransactionID != string(tx) {
		t.Errorf("TransactionID = %q, want %q", rec.TransactionID, tx)
	}

	if err := eng.CommitTransaction(ctx, tx); err != nil {
		t.Fatalf("CommitTransaction() error = %v", err)
	}
	if got := srv.TxState(string(tx)); got != "committed" {
		t.Errorf("TxState(%s) = %q, want %q", tx, got, "committed")
	}

	// Finalizing twice surfaces the bridge's refusal verbatim.
	err = eng.CommitTransaction(ctx, tx)
	var transportErr *errors.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("second CommitTransaction() error = %T (%v), want *TransportError", err, err)
	}
	if transportErr.StatusCode != 409 {
		t.Errorf("StatusCode = %d, want 409", transportErr.StatusCode)
	}
}

func TestEngine_RollbackTransaction(t *testing.T) {
	srv := bridgetest.New(t)
	eng := connectedEngine(t, srv)
	ctx := context.Background()

	tx, err := eng.StartTransaction(ctx, `{"max_wait":2000}`)
	if err != nil {
		t.Fatalf("StartTransaction() error = %v", err)
	}
	if err := eng.RollbackTransaction(ctx, tx); err != nil {
		t.Fatalf("RollbackTransaction() error = %v", err)
	}
	if got := srv.TxState(string(tx)); got != "rolled_back" {
		t.Errorf("TxState(%s) = %q, want %q", tx, got, "rolled_back")
	}
}

func TestEngine_FinalizeEmptyID(t *testing.T) {
	srv := bridgetest.New(t)
	eng := connectedEngine(t, srv)

	if err := eng.CommitTransaction(context.Background(), ""); err == nil {
		t.Error("CommitTransaction(\"\") expected error")
	}
}
