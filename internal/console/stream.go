package console

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Sender is the slice of tea.Program the stream reader needs.
type Sender interface {
	Send(msg tea.Msg)
}

// StreamEvents connects to the provider's SSE endpoint and forwards decoded
// events to the program. It reconnects with a fixed pause until ctx ends.
func StreamEvents(ctx context.Context, url string, p Sender) {
	for {
		if err := readStream(ctx, url, p); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Send(StreamErrMsg{Err: err})
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func readStream(ctx context.Context, url string, p Sender) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var name string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if name != "" {
				p.Send(EventMsg{Name: name, Data: []byte(data)})
			}
		case line == "":
			name = ""
		}
	}
	return scanner.Err()
}
