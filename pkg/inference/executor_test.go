package inference

import (
	"context"
	"strings"
	"testing"
)

func TestEchoExecutorMarksLayerRange(t *testing.T) {
	exec := NewEchoExecutor(7)
	out, tokens, err := exec.Execute(context.Background(), []byte("prompt"), 4, 8)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if tokens != 7 {
		t.Errorf("expected 7 tokens, got %d", tokens)
	}
	if !strings.HasPrefix(string(out), "prompt|stage[4:8]") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestEchoExecutorDefaultsTokenCount(t *testing.T) {
	exec := NewEchoExecutor(0)
	_, tokens, err := exec.Execute(context.Background(), nil, 0, 1)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if tokens != 1 {
		t.Errorf("expected default of 1 token, got %d", tokens)
	}
}
