// Package spsync mirrors files from a SharePoint drive into blob storage.
// It authenticates against Microsoft Graph with client credentials and runs
// either on a timer or on demand.
package spsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"docvault.org/internal/blob"
	"docvault.org/internal/config"
	"docvault.org/internal/obs"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"
	graphScope   = "https://graph.microsoft.com/.default"

	// Mirrored objects live under one prefix so operator uploads and
	// synced files never collide.
	blobPrefix = "sharepoint-sync/"
)

// FileError reports a single file that failed to sync.
type FileError struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

// Report summarizes one sync run.
type Report struct {
	Total   int         `json:"total_files"`
	Synced  int         `json:"synced_files"`
	Skipped int         `json:"skipped_files"`
	Errors  []FileError `json:"errors,omitempty"`
}

// Worker drives the sync loop.
type Worker struct {
	driveID  string
	interval time.Duration
	blobs    blob.Store
	client   *http.Client
	baseURL  string
	now      func() time.Time
}

// Option configures a Worker.
type Option func(*Worker)

// WithBaseURL points the worker at a different Graph endpoint (tests).
func WithBaseURL(u string) Option {
	return func(w *Worker) {
		if u != "" {
			w.baseURL = u
		}
	}
}

// WithHTTPClient replaces the token-bearing client (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(w *Worker) {
		if c != nil {
			w.client = c
		}
	}
}

// New builds a Worker from SharePoint settings. The returned client refreshes
// its Graph token automatically.
func New(cfg config.SharePoint, blobs blob.Store, opts ...Option) (*Worker, error) {
	if blobs == nil {
		return nil, errors.New("spsync: blob store is required")
	}
	if cfg.DriveID == "" {
		return nil, errors.New("spsync: drive id is required")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
		Scopes:       []string{graphScope},
	}
	w := &Worker{
		driveID:  cfg.DriveID,
		interval: interval,
		blobs:    blobs,
		client:   creds.Client(context.Background()),
		baseURL:  graphBaseURL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run syncs once immediately, then on every tick until the context ends.
func (w *Worker) Run(ctx context.Context) {
	w.runOnce(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	report, err := w.SyncOnce(ctx)
	if err != nil {
		obs.SyncRunsTotal.WithLabelValues("error").Inc()
		obs.LogError("sharepoint sync failed", map[string]any{"error": err.Error()})
		return
	}
	obs.SyncRunsTotal.WithLabelValues("ok").Inc()
	obs.LogInfo("sharepoint sync completed", map[string]any{
		"total":   report.Total,
		"synced":  report.Synced,
		"skipped": report.Skipped,
		"errors":  len(report.Errors),
	})
}

type driveItem struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	File   *struct{} `json:"file"`
	Folder *struct{} `json:"folder"`
}

type driveChildren struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// SyncOnce enumerates the drive root and copies every file into blob storage.
// A failed file is recorded and skipped; only listing failures abort the run.
func (w *Worker) SyncOnce(ctx context.Context) (Report, error) {
	var report Report

	url := fmt.Sprintf("%s/drives/%s/root/children", w.baseURL, w.driveID)
	for url != "" {
		var page driveChildren
		if err := w.getJSON(ctx, url, &page); err != nil {
			return report, fmt.Errorf("list drive %s: %w", w.driveID, err)
		}
		for _, item := range page.Value {
			report.Total++
			if item.File == nil {
				report.Skipped++
				continue
			}
			if err := w.syncFile(ctx, item); err != nil {
				obs.SyncFileErrors.Inc()
				report.Errors = append(report.Errors, FileError{FileName: item.Name, Error: err.Error()})
				continue
			}
			obs.SyncFilesSynced.Inc()
			report.Synced++
		}
		url = page.NextLink
	}
	return report, nil
}

func (w *Worker) syncFile(ctx context.Context, item driveItem) error {
	url := fmt.Sprintf("%s/drives/%s/items/%s/content", w.baseURL, w.driveID, item.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %d", item.Name, resp.StatusCode)
	}
	if _, err := w.blobs.Put(ctx, blobPrefix+item.Name, resp.Body); err != nil {
		return fmt.Errorf("store %s: %w", item.Name, err)
	}
	return nil
}

func (w *Worker) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
