package commands

import (
	"errors"
	"testing"

	"github.com/karta-graph/karta/internal/apperr"
	"github.com/karta-graph/karta/internal/graph"
	"github.com/karta-graph/karta/internal/models"
)

func TestManagerUndoRedoCycle(t *testing.T) {
	env, _ := testEnv(t)
	m := NewManager(env)

	if err := m.Execute(&CreateNodes{Specs: []graph.NodeSpec{virtualSpec("/cycle")}}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := env.Graph.OpenNodeByPath("/cycle"); err != nil {
		t.Fatal(err)
	}

	cmd, err := m.Undo()
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if cmd.Kind() != "create_nodes" {
		t.Errorf("undone kind = %s", cmd.Kind())
	}
	if _, err := env.Graph.OpenNodeByPath("/cycle"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("node survived undo: %v", err)
	}

	if _, err := m.Redo(); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if _, err := env.Graph.OpenNodeByPath("/cycle"); err != nil {
		t.Errorf("node missing after redo: %v", err)
	}
}

func TestManagerExecuteClearsRedo(t *testing.T) {
	env, _ := testEnv(t)
	m := NewManager(env)

	_ = m.Execute(&CreateNodes{Specs: []graph.NodeSpec{virtualSpec("/one")}})
	if _, err := m.Undo(); err != nil {
		t.Fatal(err)
	}
	_ = m.Execute(&CreateNodes{Specs: []graph.NodeSpec{virtualSpec("/two")}})

	if _, err := m.Redo(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("redo after fresh execute = %v", err)
	}
}

func TestManagerEmptyStacks(t *testing.T) {
	env, _ := testEnv(t)
	m := NewManager(env)
	if _, err := m.Undo(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("undo on empty = %v", err)
	}
	if _, err := m.Redo(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("redo on empty = %v", err)
	}
}

func TestManagerFailedApplyLeavesHistoryAlone(t *testing.T) {
	env, _ := testEnv(t)
	m := NewManager(env)
	_ = m.Execute(&CreateNodes{Specs: []graph.NodeSpec{virtualSpec("/keep")}})

	bad := &CreateNodes{Specs: []graph.NodeSpec{
		{Path: models.RootPath, NType: models.NewNodeType(models.TypeVirtualGeneric)},
	}}
	if err := m.Execute(bad); err == nil {
		t.Fatal("expected root create to fail")
	}
	undo, redo := m.History()
	if len(undo) != 1 || len(redo) != 0 {
		t.Errorf("history = %v / %v", undo, redo)
	}
}

func TestManagerHistoryOrder(t *testing.T) {
	env, _ := testEnv(t)
	m := NewManager(env)
	_ = m.Execute(&CreateNodes{Specs: []graph.NodeSpec{virtualSpec("/first")}})
	first, _ := env.Graph.OpenNodeByPath("/first")
	_ = m.Execute(&RenameNode{ID: first.UUID, NewName: "renamed"})

	undo, redo := m.History()
	if len(undo) != 2 || undo[0] != "rename_node" || undo[1] != "create_nodes" {
		t.Errorf("undo history = %v", undo)
	}
	if len(redo) != 0 {
		t.Errorf("redo history = %v", redo)
	}

	if _, err := m.Undo(); err != nil {
		t.Fatal(err)
	}
	undo, redo = m.History()
	if len(undo) != 1 || len(redo) != 1 || redo[0] != "rename_node" {
		t.Errorf("history after undo = %v / %v", undo, redo)
	}
}
