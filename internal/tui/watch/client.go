package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/inboxd/internal/store"
)

// --- Message types ---

// pollMsg carries one round of /stats and /health/ready.
type pollMsg struct {
	stats store.Stats
	ready readyResponse
	at    time.Time
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type tickMsg time.Time

type errMsg error

// --- Commands ---

// poll fetches stats and readiness. Readiness answers 503 with a body when
// not ready, so its status code is not an error here.
func poll(client *http.Client, apiURL string) tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var msg pollMsg
	if err := getJSON(ctx, client, apiURL+"/stats", http.StatusOK, &msg.stats); err != nil {
		return errMsg(err)
	}
	if err := getJSON(ctx, client, apiURL+"/health/ready", 0, &msg.ready); err != nil {
		return errMsg(err)
	}
	msg.at = time.Now()
	return msg
}

// getJSON decodes the body of GET url into out. A non-zero want rejects
// any other status code.
func getJSON(ctx context.Context, client *http.Client, url string, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if want != 0 && resp.StatusCode != want {
		return fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", url, err)
	}
	return nil
}
