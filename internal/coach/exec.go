package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execGenerator struct {
	cmd []string
	mu  sync.Mutex
}

type execResponse struct {
	Content string `json:"content"`
}

func NewExecGenerator(command string) (Generator, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse coach command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("coach command empty")
	}
	return &execGenerator{cmd: args}, nil
}

func (g *execGenerator) Tip(ctx context.Context, summary Summary) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	payload := map[string]any{
		"prompt": prompt(summary),
		"system": systemPrompt,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, g.cmd[0], g.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("coach exec command failed: %w", err)
	}

	var resp execResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return "", fmt.Errorf("decode coach exec response: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
