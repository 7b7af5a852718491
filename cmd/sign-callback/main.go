// Command sign-callback posts a signed approval callback to a running API,
// the same request the chat platform sends when a reviewer clicks a button.
//
//	sign-callback                       approve the first pending record
//	sign-callback -id <id>              approve a specific record
//	sign-callback -id <id> -dismiss     dismiss instead
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"deal_followup_backend/internal/approval"
	"deal_followup_backend/internal/followup"
	"deal_followup_backend/internal/pipeline"

	"github.com/joho/godotenv"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "API base URL")
	id := flag.String("id", "", "follow-up id (default: first pending record)")
	dismiss := flag.Bool("dismiss", false, "dismiss instead of approve")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("SLACK_SIGNING_SECRET")
	if secret == "" {
		fail(errors.New("SLACK_SIGNING_SECRET is not set"))
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	base := strings.TrimRight(*server, "/")

	records, err := fetchRecords(client, base+"/records")
	if err != nil {
		fail(err)
	}
	fmt.Printf("%d record(s) on the server\n", len(records))
	for _, r := range records {
		fmt.Printf("  %-10s %s  (%s)\n", r.Status, r.DealName, r.ID)
	}

	target, err := pickTarget(records, *id)
	if err != nil {
		fail(err)
	}
	if target.Status != followup.StatusPending {
		fmt.Printf("warning: %s is %s, expect a 404\n", target.ID, target.Status)
	}

	action := approval.ActionApprove
	if *dismiss {
		action = approval.ActionDismiss
	}

	body, err := buildCallbackBody(target.ID, action)
	if err != nil {
		fail(err)
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	req, err := http.NewRequest(http.MethodPost, base+"/webhooks/approval", bytes.NewReader(body))
	if err != nil {
		fail(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(approval.HeaderTimestamp, timestamp)
	req.Header.Set(approval.HeaderSignature, approval.Sign([]byte(secret), timestamp, body))

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		fail(fmt.Errorf("post callback: %w", err))
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	fmt.Printf("%s %s on %q -> HTTP %d in %s\n%s\n", action, target.ID, target.DealName, resp.StatusCode, time.Since(start).Round(time.Millisecond), raw)
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

func fetchRecords(client *http.Client, endpoint string) ([]followup.Record, error) {
	resp, err := client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer resp.Body.Close()

	var out pipeline.RecordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return out.Records, nil
}

func pickTarget(records []followup.Record, id string) (followup.Record, error) {
	for _, r := range records {
		if id != "" && r.ID == id {
			return r, nil
		}
		if id == "" && r.Status == followup.StatusPending {
			return r, nil
		}
	}
	if id != "" {
		return followup.Record{}, fmt.Errorf("no record with id %q", id)
	}
	return followup.Record{}, errors.New("no pending records; run the pipeline first")
}

// buildCallbackBody encodes a block_actions payload as the form body.
func buildCallbackBody(id, action string) ([]byte, error) {
	payload := map[string]interface{}{
		"type": "block_actions",
		"actions": []map[string]string{
			{"action_id": action, "value": id, "type": "button"},
		},
		"user": map[string]string{"id": "U_LOCAL", "username": "local-tester"},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []byte(url.Values{"payload": {string(data)}}.Encode()), nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(2)
}
