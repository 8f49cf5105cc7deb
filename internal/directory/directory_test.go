package directory_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/whisprlink/relay/internal/config"
	"github.com/whisprlink/relay/internal/db"
	"github.com/whisprlink/relay/internal/directory"
)

func newDirectory(t *testing.T) *directory.Directory {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("db open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(conn) })
	return directory.New(conn, zap.NewNop())
}

func TestGetOrCreate_RoundTrip(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()

	code, err := dir.GetOrCreate(ctx, 42)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if len(code) != directory.CodeLength {
		t.Fatalf("code %q has length %d, want %d", code, len(code), directory.CodeLength)
	}

	// Same identity, same code.
	again, err := dir.GetOrCreate(ctx, 42)
	if err != nil {
		t.Fatalf("GetOrCreate (second): %v", err)
	}
	if again != code {
		t.Errorf("second GetOrCreate returned %q, want %q", again, code)
	}

	looked, err := dir.LookupCode(ctx, 42)
	if err != nil {
		t.Fatalf("LookupCode: %v", err)
	}
	if looked != code {
		t.Errorf("LookupCode = %q, want %q", looked, code)
	}

	id, err := dir.Resolve(ctx, code)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != 42 {
		t.Errorf("Resolve(%q) = %d, want 42", code, id)
	}
}

func TestResolve_UnknownCode(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()

	if _, err := dir.GetOrCreate(ctx, 42); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	_, err := dir.Resolve(ctx, "ZZZZZZ")
	if !errors.Is(err, directory.ErrCodeNotFound) {
		t.Errorf("Resolve(ZZZZZZ) error = %v, want ErrCodeNotFound", err)
	}
}

func TestResolve_CaseInsensitive(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()

	code, err := dir.GetOrCreate(ctx, 7)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	lower, _ := directory.NormalizeCode(code)
	id, err := dir.Resolve(ctx, lower)
	if err != nil || id != 7 {
		t.Errorf("Resolve(normalized %q) = (%d, %v), want (7, nil)", code, id, err)
	}
}

func TestLookupCode_Unknown(t *testing.T) {
	dir := newDirectory(t)
	_, err := dir.LookupCode(context.Background(), 999)
	if !errors.Is(err, directory.ErrUserNotFound) {
		t.Errorf("LookupCode(999) error = %v, want ErrUserNotFound", err)
	}
}

// TestGetOrCreate_Concurrent fires concurrent first contacts for the same
// identity and checks that exactly one record wins: every caller observes
// the same code, and every user keeps a distinct code.
func TestGetOrCreate_Concurrent(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()

	const workers = 16
	codes := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i], errs[i] = dir.GetOrCreate(ctx, 1001)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if codes[i] != codes[0] {
			t.Fatalf("worker %d observed code %q, worker 0 observed %q", i, codes[i], codes[0])
		}
	}
}

func TestGetOrCreate_DistinctCodes(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()

	seen := make(map[string]int64)
	for id := int64(1); id <= 50; id++ {
		code, err := dir.GetOrCreate(ctx, id)
		if err != nil {
			t.Fatalf("GetOrCreate(%d): %v", id, err)
		}
		if owner, dup := seen[code]; dup {
			t.Fatalf("code %q issued to both %d and %d", code, owner, id)
		}
		seen[code] = id
	}
}

func TestCounters(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()

	if _, err := dir.GetOrCreate(ctx, 42); err != nil {
		t.Fatal(err)
	}
	if _, err := dir.GetOrCreate(ctx, 7); err != nil {
		t.Fatal(err)
	}

	if err := dir.IncrementSent(ctx, 42); err != nil {
		t.Fatalf("IncrementSent: %v", err)
	}
	if err := dir.IncrementReceived(ctx, 7); err != nil {
		t.Fatalf("IncrementReceived: %v", err)
	}

	sent, received, err := dir.Counters(ctx, 42)
	if err != nil {
		t.Fatalf("Counters(42): %v", err)
	}
	if sent != 1 || received != 0 {
		t.Errorf("Counters(42) = (%d, %d), want (1, 0)", sent, received)
	}

	sent, received, err = dir.Counters(ctx, 7)
	if err != nil {
		t.Fatalf("Counters(7): %v", err)
	}
	if sent != 0 || received != 1 {
		t.Errorf("Counters(7) = (%d, %d), want (0, 1)", sent, received)
	}
}

// TestCounters_ConcurrentIncrements hammers both counters of one identity
// and expects no lost updates: the increment is a single SQL expression,
// not a read-modify-write.
func TestCounters_ConcurrentIncrements(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()

	if _, err := dir.GetOrCreate(ctx, 42); err != nil {
		t.Fatal(err)
	}

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := dir.IncrementSent(ctx, 42); err != nil {
				t.Errorf("IncrementSent: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := dir.IncrementReceived(ctx, 42); err != nil {
				t.Errorf("IncrementReceived: %v", err)
			}
		}()
	}
	wg.Wait()

	sent, received, err := dir.Counters(ctx, 42)
	if err != nil {
		t.Fatalf("Counters: %v", err)
	}
	if sent != n || received != n {
		t.Errorf("counters = (%d, %d), want (%d, %d)", sent, received, n, n)
	}
}

func TestCounters_UnknownIdentityDefaultsToZero(t *testing.T) {
	dir := newDirectory(t)
	sent, received, err := dir.Counters(context.Background(), 12345)
	if err != nil {
		t.Fatalf("Counters: %v", err)
	}
	if sent != 0 || received != 0 {
		t.Errorf("Counters(unknown) = (%d, %d), want (0, 0)", sent, received)
	}
}

func TestIncrement_UnknownIdentityIsSilent(t *testing.T) {
	dir := newDirectory(t)
	if err := dir.IncrementSent(context.Background(), 12345); err != nil {
		t.Errorf("IncrementSent(unknown) = %v, want nil", err)
	}
}

func TestCodeExists(t *testing.T) {
	dir := newDirectory(t)
	ctx := context.Background()

	code, err := dir.GetOrCreate(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := dir.CodeExists(ctx, code)
	if err != nil || !ok {
		t.Errorf("CodeExists(%q) = (%v, %v), want (true, nil)", code, ok, err)
	}
	ok, err = dir.CodeExists(ctx, "ZZZZZZ")
	if err != nil || ok {
		t.Errorf("CodeExists(ZZZZZZ) = (%v, %v), want (false, nil)", ok, err)
	}
}
