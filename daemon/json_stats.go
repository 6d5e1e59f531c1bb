/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// JSONStats is what we want to report as stats via http
type JSONStats struct {
	Stats
}

// NewJSONStats returns a new JSONStats
func NewJSONStats() *JSONStats {
	return &JSONStats{Stats: Stats{counters: map[string]int64{}}}
}

// Handler returns the mux serving counters on both / and /counters
func (s *JSONStats) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	mux.HandleFunc("/counters", s.handleRequest)
	return mux
}

// Start runs http server until ctx is cancelled
func (s *JSONStats) Start(ctx context.Context, monitoringport int) error {
	addr := fmt.Sprintf(":%d", monitoringport)
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	log.Infof("Starting http json server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start listener: %w", err)
	}
	return nil
}

// handleRequest is a handler used for all http monitoring requests
func (s *JSONStats) handleRequest(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(s.Get())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

// FetchCounters returns counters from a running softclockd
func FetchCounters(url string) (map[string]int64, error) {
	counters := make(map[string]int64)
	c := http.Client{
		Timeout: time.Second * 2,
	}
	resp, err := c.Get(url + "/counters")
	if err != nil {
		return counters, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return counters, fmt.Errorf("unexpected response status %q", resp.Status)
	}
	err = json.NewDecoder(resp.Body).Decode(&counters)
	return counters, err
}
