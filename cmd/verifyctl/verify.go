package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type verifyOptions struct {
	URL             string
	Concurrency     int
	Timeout         time.Duration
	RequireVerified bool
}

func newVerifyCmd() *cobra.Command {
	o := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify FILE...",
		Short: "Upload documents and print one JSON verdict per line.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := runVerify(cmd.Context(), o, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&o.URL, "url", "http://localhost:5001", "base URL of the verification server")
	cmd.Flags().IntVar(&o.Concurrency, "concurrency", 4, "maximum number of uploads in flight")
	cmd.Flags().DurationVar(&o.Timeout, "timeout", 2*time.Minute, "per-document request timeout")
	cmd.Flags().BoolVar(&o.RequireVerified, "require-verified", false, "count unverified documents as failures")
	return cmd
}

type outcome struct {
	body     []byte
	verified bool
	err      error
}

// runVerify uploads every file and prints results in argument order. It
// returns the number of failures.
func runVerify(ctx context.Context, o *verifyOptions, files []string, stdout, stderr io.Writer) int {
	if ctx == nil {
		ctx = context.Background()
	}
	client := &http.Client{Timeout: o.Timeout}
	endpoint := strings.TrimRight(o.URL, "/") + "/api/verify"

	results := make([]outcome, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.Concurrency, 1))
	for i, path := range files {
		g.Go(func() error {
			body, verified, err := postFile(ctx, client, endpoint, path)
			results[i] = outcome{body: body, verified: verified, err: err}
			return nil
		})
	}
	g.Wait()

	failed := 0
	for i, r := range results {
		if r.err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", files[i], r.err)
			failed++
			continue
		}
		fmt.Fprintln(stdout, string(r.body))
		if o.RequireVerified && !r.verified {
			failed++
		}
	}
	return failed
}

// postFile uploads one document. A 4xx with a JSON body is still a verdict.
func postFile(ctx context.Context, client *http.Client, endpoint, path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, false, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, false, err
	}
	if err := mw.Close(); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	var verdict struct {
		IsVerified bool `json:"is_verified"`
	}
	if err := json.Unmarshal(respBody, &verdict); err != nil {
		return nil, false, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, false, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, respBody); err != nil {
		return nil, false, err
	}
	return compact.Bytes(), verdict.IsVerified, nil
}
