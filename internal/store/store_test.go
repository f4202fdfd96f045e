package store

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "karta-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testNode(t *testing.T, db *DB, path models.NodePath, typePath string) models.DataNode {
	t.Helper()
	n := models.NewDataNode(path, models.NewNodeType(typePath))
	if err := db.PutNode(n); err != nil {
		t.Fatalf("PutNode(%s): %v", path, err)
	}
	return n
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"nodes", "node_attrs", "edges", "edge_attrs"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestPutAndGetNode(t *testing.T) {
	db := testDB(t)
	n := models.NewDataNode("/docs/readme.txt", models.NewNodeType(models.TypeFile))
	n.Attributes = []models.Attribute{
		{Name: "color", Value: models.StringValue("red")},
		{Name: "weight", Value: models.F32Value(0.5)},
		{Name: "count", Value: models.I64Value(7)},
		{Name: "blob", Value: models.BytesValue([]byte{1, 2, 3})},
	}
	if err := db.PutNode(n); err != nil {
		t.Fatalf("PutNode: %v", err)
	}

	byID, err := db.NodeByUUID(n.UUID)
	if err != nil {
		t.Fatalf("NodeByUUID: %v", err)
	}
	if byID == nil || byID.Path != n.Path || byID.NType.TypePath != models.TypeFile {
		t.Fatalf("node = %+v", byID)
	}
	if len(byID.Attributes) != 4 {
		t.Fatalf("attrs = %+v", byID.Attributes)
	}
	for _, want := range n.Attributes {
		got, ok := byID.Attr(want.Name)
		if !ok || !got.Equal(want.Value) {
			t.Errorf("attr %q = %+v, want %+v", want.Name, got, want.Value)
		}
	}

	byPath, err := db.NodeByPath(n.Path)
	if err != nil {
		t.Fatalf("NodeByPath: %v", err)
	}
	if byPath == nil || byPath.UUID != n.UUID {
		t.Fatalf("path lookup = %+v", byPath)
	}
}

func TestGetNode_Absent(t *testing.T) {
	db := testDB(t)
	n, err := db.NodeByUUID(uuid.New())
	if err != nil {
		t.Fatalf("NodeByUUID: %v", err)
	}
	if n != nil {
		t.Errorf("expected nil, got %+v", n)
	}
	n, err = db.NodeByPath("/nope")
	if err != nil || n != nil {
		t.Errorf("NodeByPath = %+v, %v", n, err)
	}
}

func TestPutNodeReplacesAttrs(t *testing.T) {
	db := testDB(t)
	n := testNode(t, db, "/n", models.TypeVirtualGeneric)
	n.Attributes = []models.Attribute{{Name: "a", Value: models.StringValue("1")}}
	_ = db.PutNode(n)
	n.Attributes = []models.Attribute{{Name: "b", Value: models.StringValue("2")}}
	if err := db.PutNode(n); err != nil {
		t.Fatalf("PutNode: %v", err)
	}
	got, _ := db.NodeByUUID(n.UUID)
	if len(got.Attributes) != 1 || got.Attributes[0].Name != "b" {
		t.Errorf("attrs = %+v", got.Attributes)
	}
}

func TestNodesUnder(t *testing.T) {
	db := testDB(t)
	testNode(t, db, "/", models.TypeRoot)
	testNode(t, db, "/a", models.TypeDir)
	testNode(t, db, "/a/x.txt", models.TypeFile)
	testNode(t, db, "/a/sub", models.TypeDir)
	testNode(t, db, "/a/sub/y.txt", models.TypeFile)
	testNode(t, db, "/ab", models.TypeDir)

	under, err := db.NodesUnder("/a")
	if err != nil {
		t.Fatalf("NodesUnder: %v", err)
	}
	want := []models.NodePath{"/a/sub", "/a/sub/y.txt", "/a/x.txt"}
	if len(under) != len(want) {
		t.Fatalf("got %d nodes: %+v", len(under), under)
	}
	for i, n := range under {
		if n.Path != want[i] {
			t.Errorf("under[%d] = %q, want %q", i, n.Path, want[i])
		}
	}

	all, err := db.NodesUnder(models.RootPath)
	if err != nil {
		t.Fatalf("NodesUnder root: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("descendants of root = %d, want 5", len(all))
	}
}

func TestNodesUnderEscapesLikeChars(t *testing.T) {
	db := testDB(t)
	testNode(t, db, "/100%", models.TypeDir)
	testNode(t, db, "/100%/in.txt", models.TypeFile)
	testNode(t, db, "/100x", models.TypeDir)
	testNode(t, db, "/100x/out.txt", models.TypeFile)

	under, err := db.NodesUnder("/100%")
	if err != nil {
		t.Fatalf("NodesUnder: %v", err)
	}
	if len(under) != 1 || under[0].Path != "/100%/in.txt" {
		t.Errorf("under = %+v", under)
	}
}

func TestRebasePaths(t *testing.T) {
	db := testDB(t)
	moved := testNode(t, db, "/old", models.TypeDir)
	child := testNode(t, db, "/old/child.txt", models.TypeFile)
	deep := testNode(t, db, "/old/sub/deep.txt", models.TypeFile)
	other := testNode(t, db, "/older", models.TypeDir)

	if err := db.RebasePaths("/old", "/new"); err != nil {
		t.Fatalf("RebasePaths: %v", err)
	}
	for id, want := range map[uuid.UUID]models.NodePath{
		moved.UUID: "/new",
		child.UUID: "/new/child.txt",
		deep.UUID:  "/new/sub/deep.txt",
		other.UUID: "/older",
	} {
		got, err := db.NodeByUUID(id)
		if err != nil || got == nil {
			t.Fatalf("lookup %s: %v", id, err)
		}
		if got.Path != want {
			t.Errorf("path = %q, want %q", got.Path, want)
		}
	}
}

func TestTouchNode(t *testing.T) {
	db := testDB(t)
	n := testNode(t, db, "/t.txt", models.TypeFile)
	later := time.Now().Unix() + 100
	if err := db.TouchNode(n.UUID, later); err != nil {
		t.Fatalf("TouchNode: %v", err)
	}
	got, _ := db.NodeByUUID(n.UUID)
	if got.ModifiedTime != later {
		t.Errorf("modified = %d, want %d", got.ModifiedTime, later)
	}
	if got.CreatedTime != n.CreatedTime {
		t.Errorf("created changed: %d != %d", got.CreatedTime, n.CreatedTime)
	}
}

func TestDeleteNodeCascades(t *testing.T) {
	db := testDB(t)
	parent := testNode(t, db, "/p", models.TypeDir)
	child := testNode(t, db, "/p/c.txt", models.TypeFile)
	child.Attributes = []models.Attribute{{Name: "k", Value: models.StringValue("v")}}
	_ = db.PutNode(child)

	e := models.NewEdge(parent.UUID, child.UUID, models.EdgeContains)
	e.Attributes = []models.Attribute{{Name: "order", Value: models.I64Value(1)}}
	if err := db.PutEdge(e); err != nil {
		t.Fatalf("PutEdge: %v", err)
	}

	if err := db.DeleteNode(child.UUID); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if n, _ := db.NodeByUUID(child.UUID); n != nil {
		t.Error("node row survived delete")
	}
	if edge, _ := db.GetEdge(parent.UUID, child.UUID); edge != nil {
		t.Error("edge survived node delete")
	}
	var count int
	_ = db.conn.QueryRow(`SELECT count(*) FROM node_attrs`).Scan(&count)
	if count != 0 {
		t.Errorf("node attr rows = %d, want 0", count)
	}
	_ = db.conn.QueryRow(`SELECT count(*) FROM edge_attrs`).Scan(&count)
	if count != 0 {
		t.Errorf("edge attr rows = %d, want 0", count)
	}

	// Deleting again is a no-op.
	if err := db.DeleteNode(child.UUID); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestEdgeLifecycle(t *testing.T) {
	db := testDB(t)
	a := testNode(t, db, "/a", models.TypeVirtualGeneric)
	b := testNode(t, db, "/b", models.TypeVirtualGeneric)

	e := models.NewEdge(a.UUID, b.UUID, models.EdgeBase)
	e.Attributes = []models.Attribute{{Name: "strength", Value: models.F64Value(0.8)}}
	if err := db.PutEdge(e); err != nil {
		t.Fatalf("PutEdge: %v", err)
	}

	got, err := db.GetEdge(a.UUID, b.UUID)
	if err != nil {
		t.Fatalf("GetEdge: %v", err)
	}
	if got == nil || got.EType != models.EdgeBase {
		t.Fatalf("edge = %+v", got)
	}
	if len(got.Attributes) != 1 || got.Attributes[0].Name != "strength" {
		t.Errorf("attrs = %+v", got.Attributes)
	}

	// Reverse orientation is a different edge.
	if rev, _ := db.GetEdge(b.UUID, a.UUID); rev != nil {
		t.Error("reverse lookup should be nil")
	}

	if err := db.DeleteEdge(a.UUID, b.UUID); err != nil {
		t.Fatalf("DeleteEdge: %v", err)
	}
	if gone, _ := db.GetEdge(a.UUID, b.UUID); gone != nil {
		t.Error("edge survived delete")
	}
}

func TestParentAndChildren(t *testing.T) {
	db := testDB(t)
	root := testNode(t, db, "/", models.TypeRoot)
	d := testNode(t, db, "/d", models.TypeDir)
	f := testNode(t, db, "/d/f.txt", models.TypeFile)
	_ = db.PutEdge(models.NewEdge(root.UUID, d.UUID, models.EdgeContains))
	_ = db.PutEdge(models.NewEdge(d.UUID, f.UUID, models.EdgeContains))
	// A non-contains edge must not show up as a parent link.
	_ = db.PutEdge(models.NewEdge(f.UUID, d.UUID, models.EdgeBase))

	p, err := db.ParentOf(f.UUID)
	if err != nil {
		t.Fatalf("ParentOf: %v", err)
	}
	if p == nil || p.Source != d.UUID {
		t.Fatalf("parent = %+v", p)
	}
	if top, _ := db.ParentOf(root.UUID); top != nil {
		t.Errorf("root parent = %+v", top)
	}

	kids, err := db.ChildrenOf(d.UUID)
	if err != nil {
		t.Fatalf("ChildrenOf: %v", err)
	}
	if len(kids) != 1 || kids[0].Target != f.UUID {
		t.Errorf("children = %+v", kids)
	}
}

func TestEdgesTouching(t *testing.T) {
	db := testDB(t)
	a := testNode(t, db, "/a", models.TypeVirtualGeneric)
	b := testNode(t, db, "/b", models.TypeVirtualGeneric)
	c := testNode(t, db, "/c", models.TypeVirtualGeneric)
	_ = db.PutEdge(models.NewEdge(a.UUID, b.UUID, models.EdgeBase))
	_ = db.PutEdge(models.NewEdge(c.UUID, a.UUID, models.EdgeBase))
	_ = db.PutEdge(models.NewEdge(b.UUID, c.UUID, models.EdgeBase))

	touching, err := db.EdgesTouching(a.UUID)
	if err != nil {
		t.Fatalf("EdgesTouching: %v", err)
	}
	if len(touching) != 2 {
		t.Errorf("touching = %+v", touching)
	}
}

func TestReconnectEdgeKeepsAttrs(t *testing.T) {
	db := testDB(t)
	a := testNode(t, db, "/a", models.TypeVirtualGeneric)
	b := testNode(t, db, "/b", models.TypeVirtualGeneric)
	c := testNode(t, db, "/c", models.TypeVirtualGeneric)

	e := models.NewEdge(a.UUID, b.UUID, models.EdgeBase)
	e.Attributes = []models.Attribute{{Name: "label", Value: models.StringValue("x")}}
	_ = db.PutEdge(e)

	if err := db.ReconnectEdge(a.UUID, b.UUID, a.UUID, c.UUID, time.Now().Unix()); err != nil {
		t.Fatalf("ReconnectEdge: %v", err)
	}
	if old, _ := db.GetEdge(a.UUID, b.UUID); old != nil {
		t.Error("old edge still present")
	}
	moved, err := db.GetEdge(a.UUID, c.UUID)
	if err != nil || moved == nil {
		t.Fatalf("moved edge: %+v, %v", moved, err)
	}
	if len(moved.Attributes) != 1 || moved.Attributes[0].Name != "label" {
		t.Errorf("attrs lost on reconnect: %+v", moved.Attributes)
	}
}

func TestAllNodesAndUUIDs(t *testing.T) {
	db := testDB(t)
	n1 := testNode(t, db, "/b", models.TypeDir)
	n2 := testNode(t, db, "/a", models.TypeDir)

	all, err := db.AllNodes()
	if err != nil {
		t.Fatalf("AllNodes: %v", err)
	}
	if len(all) != 2 || all[0].Path != "/a" || all[1].Path != "/b" {
		t.Errorf("all = %+v", all)
	}

	ids, err := db.AllUUIDs()
	if err != nil {
		t.Fatalf("AllUUIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %v", ids)
	}
	for _, id := range []uuid.UUID{n1.UUID, n2.UUID} {
		if _, ok := ids[id]; !ok {
			t.Errorf("missing %s", id)
		}
	}
}
