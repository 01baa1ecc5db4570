package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/tyreaid/roadaid/config"
	"github.com/tyreaid/roadaid/core/dispatch"
	"github.com/tyreaid/roadaid/core/scheduler"
	"github.com/tyreaid/roadaid/infra/logger"
)

var watchProvider string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the visible set for a provider and print new requests",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&apiURL, "url", "http://localhost:8080", "service base URL")
	watchCmd.Flags().StringVar(&apiToken, "token", "", "bearer token")
	watchCmd.Flags().StringVar(&watchProvider, "provider", "", "provider id")
	_ = watchCmd.MarkFlagRequired("provider")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New("watch")
	client := &http.Client{Timeout: 10 * time.Second}
	fetch := func(ctx context.Context) (dispatch.Visibility, error) {
		endpoint := apiURL + "/requests?providerId=" + url.QueryEscape(watchProvider)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return dispatch.Visibility{}, err
		}
		if apiToken != "" {
			req.Header.Set("Authorization", "Bearer "+apiToken)
		}
		resp, err := client.Do(req)
		if err != nil {
			return dispatch.Visibility{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return dispatch.Visibility{}, fmt.Errorf("fetch failed: %s", resp.Status)
		}
		var vis dispatch.Visibility
		if err := json.NewDecoder(resp.Body).Decode(&vis); err != nil {
			return dispatch.Visibility{}, err
		}
		return vis, nil
	}

	poller := scheduler.NewPoller(fetch, cfg.Sync, log)
	poller.Run(cmd.Context(), func(fresh []string) {
		for _, id := range fresh {
			fmt.Printf("new request visible: %s\n", id)
		}
	})
	return nil
}
