package mcpserver

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/karta-graph/karta/internal/contexts"
	"github.com/karta-graph/karta/internal/graph"
	"github.com/karta-graph/karta/internal/service"
	"github.com/karta-graph/karta/internal/settings"
	"github.com/karta-graph/karta/internal/store"
	"github.com/karta-graph/karta/internal/vaultfs"
)

func testServer(t *testing.T) (*Server, *vaultfs.Vault) {
	t.Helper()

	v, err := vaultfs.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db, err := store.Open(filepath.Join(v.KartaDir(), "karta.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	g, err := graph.Open(v, db)
	if err != nil {
		t.Fatal(err)
	}
	cs, err := contexts.NewStore(filepath.Join(v.KartaDir(), "contexts"))
	if err != nil {
		t.Fatal(err)
	}
	set, err := settings.NewStore(filepath.Join(v.KartaDir(), "settings.json"))
	if err != nil {
		t.Fatal(err)
	}

	srv := New(service.New(g, cs, set, nil))
	return srv, v
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so we go through the
	// handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_nodes":
		result, err = srv.searchNodes(ctx, req)
	case "open_node":
		result, err = srv.openNode(ctx, req)
	case "open_context":
		result, err = srv.openContext(ctx, req)
	case "create_node":
		result, err = srv.createNode(ctx, req)
	case "connect_nodes":
		result, err = srv.connectNodes(ctx, req)
	case "fetch_asset":
		result, err = srv.fetchAsset(ctx, req)
	case "get_graph_model":
		result, err = srv.getGraphModel(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndOpenNode(t *testing.T) {
	srv, v := testServer(t)

	r := callTool(t, srv, "create_node", map[string]interface{}{
		"name":  "notes",
		"ntype": "core/fs/dir",
	})
	if text := resultText(r); !strings.HasPrefix(text, "created: /notes") {
		t.Errorf("create result = %q", text)
	}
	if !v.Exists("/notes") {
		t.Error("directory not created on disk")
	}

	r = callTool(t, srv, "open_node", map[string]interface{}{"handle": "/notes"})
	if r.IsError {
		t.Fatalf("open_node error: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, `"/notes"`) {
		t.Errorf("open result = %q", text)
	}
}

func TestCreateNodeTwice(t *testing.T) {
	srv, _ := testServer(t)

	_ = callTool(t, srv, "create_node", map[string]interface{}{"name": "idea"})
	r := callTool(t, srv, "create_node", map[string]interface{}{"name": "idea"})
	if text := resultText(r); !strings.HasPrefix(text, "already exists: /idea") {
		t.Errorf("second create = %q", text)
	}
}

func TestOpenNodeMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "open_node", map[string]interface{}{"handle": "/nope"})
	if !r.IsError {
		t.Error("expected error for missing node")
	}
}

func TestSearchNodesTool(t *testing.T) {
	srv, v := testServer(t)
	if err := v.Write("/deep/target-note.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "search_nodes", map[string]interface{}{"query": "target-note"})
	if r.IsError {
		t.Fatalf("search error: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, "target-note.txt") {
		t.Errorf("search result = %q", text)
	}
}

func TestConnectNodesTool(t *testing.T) {
	srv, _ := testServer(t)
	ctx := context.Background()

	ra, err := srv.svc.CreateNodes(ctx, []service.CreateNodeRequest{{Name: "a"}})
	if err != nil {
		t.Fatal(err)
	}
	rb, err := srv.svc.CreateNodes(ctx, []service.CreateNodeRequest{{Name: "b"}})
	if err != nil {
		t.Fatal(err)
	}
	args := map[string]interface{}{
		"source": ra[0].Node.UUID.String(),
		"target": rb[0].Node.UUID.String(),
	}

	r := callTool(t, srv, "connect_nodes", args)
	if r.IsError {
		t.Fatalf("connect error: %s", resultText(r))
	}
	if text := resultText(r); !strings.HasPrefix(text, "connected:") {
		t.Errorf("connect result = %q", text)
	}

	// The same pair again is a conflict.
	if r = callTool(t, srv, "connect_nodes", args); !r.IsError {
		t.Error("expected error for duplicate edge")
	}

	r = callTool(t, srv, "connect_nodes", map[string]interface{}{
		"source": "not-a-uuid", "target": rb[0].Node.UUID.String(),
	})
	if !r.IsError {
		t.Error("expected error for malformed uuid")
	}
}

func TestOpenContextTool(t *testing.T) {
	srv, v := testServer(t)
	if err := v.Write("/a/b.txt", []byte("b")); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "open_context", map[string]interface{}{"handle": "a"})
	if r.IsError {
		t.Fatalf("open_context error: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, `"/a"`) || !strings.Contains(text, `"/a/b.txt"`) {
		t.Errorf("context result = %q", text)
	}
}

func TestGetGraphModel(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_graph_model", map[string]interface{}{})
	if text := resultText(r); !strings.Contains(text, "core/virtual_generic") {
		t.Errorf("contract = %q", text)
	}
}

func TestFetchAssetDataURI(t *testing.T) {
	srv, v := testServer(t)

	png := append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 16)...)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	r := callTool(t, srv, "fetch_asset", map[string]interface{}{
		"url": uri, "filename": "shot.png",
	})
	if r.IsError {
		t.Fatalf("fetch_asset error: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, "/shot.png") || !strings.Contains(text, "core/image") {
		t.Errorf("fetch result = %q", text)
	}
	if !v.Exists("/shot.png") {
		t.Error("asset not written to the vault")
	}

	// Same name again collides.
	if r = callTool(t, srv, "fetch_asset", map[string]interface{}{"url": uri, "filename": "shot.png"}); !r.IsError {
		t.Error("expected error for existing asset")
	}
}

func TestFetchAssetRejectsMismatchedContent(t *testing.T) {
	srv, _ := testServer(t)

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("just text"))
	r := callTool(t, srv, "fetch_asset", map[string]interface{}{"url": uri, "filename": "fake.png"})
	if !r.IsError {
		t.Error("expected error for content/extension mismatch")
	}
}

func TestFetchAssetUnsupportedExtension(t *testing.T) {
	srv, _ := testServer(t)

	png := append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 16)...)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	r := callTool(t, srv, "fetch_asset", map[string]interface{}{"url": uri, "filename": "evil.exe"})
	if text := resultText(r); !r.IsError || !strings.Contains(text, "unsupported file extension") {
		t.Errorf("result = %q, IsError = %v", text, r.IsError)
	}
}

func TestFetchAssetBlockedHost(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "fetch_asset", map[string]interface{}{"url": "http://127.0.0.1:9/x.png"})
	if text := resultText(r); !r.IsError || !strings.Contains(text, "blocked host") {
		t.Errorf("result = %q, IsError = %v", text, r.IsError)
	}
}
