package backfill

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ParseFile reads a JSONL export with one conversation per line. Malformed
// lines and lines without messages are skipped. Conversations without a
// session id are named after their file and line.
func ParseFile(path string) ([]Conversation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var convs []Conversation
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var c Conversation
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			continue
		}
		if len(c.Messages) == 0 {
			continue
		}
		c.Path = path
		c.Line = line
		if c.SessionID == "" {
			c.SessionID = fmt.Sprintf("%s:%d", filepath.Base(path), line)
		}
		convs = append(convs, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return convs, nil
}
