package graphground

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

// testDB creates a temporary database for testing.
func testDB(t *testing.T, opts ...Options) *DB {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "testdb")

	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	db, err := Open(dir, opt)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// seedGraph loads a YAML graph document into db and returns node IDs by key.
func seedGraph(t *testing.T, db *DB, doc string) map[string]NodeID {
	t.Helper()
	gd, err := ParseGraphDoc([]byte(doc))
	if err != nil {
		t.Fatalf("ParseGraphDoc failed: %v", err)
	}
	ids, err := db.LoadGraphDoc(gd)
	if err != nil {
		t.Fatalf("LoadGraphDoc failed: %v", err)
	}
	return ids
}

// mustEdge adds an edge without properties and fails the test on error.
func mustEdge(t *testing.T, db *DB, from, to NodeID, label string) EdgeID {
	t.Helper()
	id, err := db.AddEdge(from, to, label, nil)
	if err != nil {
		t.Fatalf("AddEdge(%d, %d, %q) failed: %v", from, to, label, err)
	}
	return id
}

func TestOpenClose(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "testdb")

	db, err := Open(dir, DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.NodeCount != 0 || stats.EdgeCount != 0 {
		t.Errorf("expected empty db, got nodes=%d edges=%d", stats.NodeCount, stats.EdgeCount)
	}
	if stats.DiskSizeBytes <= 0 {
		t.Errorf("expected non-empty file, got %d bytes", stats.DiskSizeBytes)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := db.GetNode(1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}

	db2, err := Open(dir, DefaultOptions())
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer db2.Close()
}

func TestNodeCRUD(t *testing.T) {
	db := testDB(t)

	id, err := db.AddNode(Props{"name": "Alice", "age": 30})
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if id != 1 {
		t.Errorf("expected id=1, got %d", id)
	}

	node, err := db.GetNode(id)
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if node.GetString("name") != "Alice" {
		t.Errorf("expected name=Alice, got %s", node.GetString("name"))
	}
	if node.GetFloat("age") != 30 {
		t.Errorf("expected age=30, got %v", node.Props["age"])
	}

	// Cached copies are independent of what callers do with them.
	node.Props["name"] = "Mallory"
	again, err := db.GetNode(id)
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if again.GetString("name") != "Alice" {
		t.Errorf("cache was mutated through a returned node: %s", again.GetString("name"))
	}

	if _, err := db.GetNode(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	exists, err := db.NodeExists(id)
	if err != nil || !exists {
		t.Errorf("NodeExists(%d) = %v, %v", id, exists, err)
	}
	if db.NodeCount() != 1 {
		t.Errorf("expected 1 node, got %d", db.NodeCount())
	}
}

func TestEdgeCRUD(t *testing.T) {
	db := testDB(t)

	alice, _ := db.AddNode(Props{"name": "Alice"})
	bob, _ := db.AddNode(Props{"name": "Bob"})

	eid, err := db.AddEdge(alice, bob, "follows", Props{"since": "2024"})
	if err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}

	edge, err := db.GetEdge(eid)
	if err != nil {
		t.Fatalf("GetEdge failed: %v", err)
	}
	if edge.From != alice || edge.To != bob || edge.Label != "follows" {
		t.Errorf("unexpected edge: %+v", edge)
	}
	if edge.Props["since"] != "2024" {
		t.Errorf("expected since=2024, got %v", edge.Props["since"])
	}

	out, _ := db.OutEdges(alice)
	if len(out) != 1 || out[0].ID != eid {
		t.Errorf("expected 1 out edge from alice, got %d", len(out))
	}
	in, _ := db.InEdges(bob)
	if len(in) != 1 || in[0].ID != eid {
		t.Errorf("expected 1 in edge to bob, got %d", len(in))
	}

	if _, err := db.AddEdge(alice, 999, "follows", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for dangling edge, got %v", err)
	}
	if db.EdgeCount() != 1 {
		t.Errorf("expected 1 edge, got %d", db.EdgeCount())
	}
}

func TestEdgeLabeled(t *testing.T) {
	db := testDB(t)

	a, _ := db.AddNode(Props{"name": "A"})
	b, _ := db.AddNode(Props{"name": "B"})
	c, _ := db.AddNode(Props{"name": "C"})

	mustEdge(t, db, a, b, "follows")
	mustEdge(t, db, a, c, "blocks")
	mustEdge(t, db, b, c, "follows")

	follows, _ := db.OutEdgesLabeled(a, "follows")
	if len(follows) != 1 || follows[0].To != b {
		t.Errorf("expected a-follows->b only, got %v", follows)
	}
	blockedBy, _ := db.InEdgesLabeled(c, "blocks")
	if len(blockedBy) != 1 || blockedBy[0].From != a {
		t.Errorf("expected a-blocks->c only, got %v", blockedBy)
	}

	all, _ := db.EdgesByLabel("follows")
	if len(all) != 2 {
		t.Errorf("expected 2 follows edges, got %d", len(all))
	}
	// "follow" must not match the "follows" index prefix.
	none, _ := db.EdgesByLabel("follow")
	if len(none) != 0 {
		t.Errorf("expected no edges for prefix label, got %d", len(none))
	}

	ok, _ := db.HasEdgeLabeled(b, c, "follows")
	if !ok {
		t.Error("expected b-follows->c")
	}
	ok, _ = db.HasEdgeLabeled(c, b, "follows")
	if ok {
		t.Error("did not expect c-follows->b")
	}

	var n int
	if err := db.ForEachEdge(func(*Edge) error { n++; return nil }); err != nil {
		t.Fatalf("ForEachEdge failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 edges, got %d", n)
	}
}

func TestReopenKeepsCounters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "testdb")

	db, err := Open(dir, DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	a, _ := db.AddNode(nil)
	b, _ := db.AddNode(nil)
	mustEdge(t, db, a, b, "x")
	db.Close()

	db, err = Open(dir, DefaultOptions())
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer db.Close()

	if db.NodeCount() != 2 || db.EdgeCount() != 1 {
		t.Errorf("expected 2 nodes/1 edge after reopen, got %d/%d", db.NodeCount(), db.EdgeCount())
	}
	c, err := db.AddNode(nil)
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if c != 3 {
		t.Errorf("expected next id 3, got %d", c)
	}
}

func TestBatchOperations(t *testing.T) {
	db := testDB(t)

	props := make([]Props, 100)
	for i := range props {
		props[i] = Props{"i": i}
	}
	ids, err := db.AddNodeBatch(props)
	if err != nil {
		t.Fatalf("AddNodeBatch failed: %v", err)
	}
	if len(ids) != 100 {
		t.Fatalf("expected 100 ids, got %d", len(ids))
	}

	var seen int
	err = db.ForEachNode(func(n *Node) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachNode failed: %v", err)
	}
	if seen != 100 {
		t.Errorf("expected 100 nodes, got %d", seen)
	}
}

func TestConcurrentReads(t *testing.T) {
	db := testDB(t)

	ids := make([]NodeID, 50)
	for i := range ids {
		ids[i], _ = db.AddNode(Props{"name": fmt.Sprintf("n%d", i)})
	}
	for i := 1; i < len(ids); i++ {
		mustEdge(t, db, ids[i-1], ids[i], "next")
	}

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range ids {
				if _, err := db.GetNode(id); err != nil {
					errs <- err
					return
				}
				if _, err := db.OutEdgesLabeled(id, "next"); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent read failed: %v", err)
	}
}

func BenchmarkAddNode(b *testing.B) {
	dir := filepath.Join(b.TempDir(), "benchdb")
	opts := DefaultOptions()
	opts.NoSync = true
	db, err := Open(dir, opts)
	if err != nil {
		b.Fatal(err)
	}
	defer db.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		db.AddNode(Props{"i": i})
	}
}

func BenchmarkGetNode(b *testing.B) {
	dir := filepath.Join(b.TempDir(), "benchdb")
	db, err := Open(dir, DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}
	defer db.Close()

	id, _ := db.AddNode(Props{"name": "bench"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		db.GetNode(id)
	}
}
