package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	apiURL    string
	apiToken  string
	reqUser   string
	reqLat    float64
	reqLon    float64
	reqPrio   string
	reqTitle  string
	reqDetail string
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Submit a service request against a running instance",
	RunE:  runRequest,
}

func init() {
	requestCmd.Flags().StringVar(&apiURL, "url", "http://localhost:8080", "service base URL")
	requestCmd.Flags().StringVar(&apiToken, "token", "", "bearer token")
	requestCmd.Flags().StringVar(&reqUser, "requester", "", "requester id")
	requestCmd.Flags().Float64Var(&reqLat, "lat", 0, "latitude")
	requestCmd.Flags().Float64Var(&reqLon, "lon", 0, "longitude")
	requestCmd.Flags().StringVar(&reqPrio, "priority", "", "LOW, MEDIUM or HIGH")
	requestCmd.Flags().StringVar(&reqTitle, "title", "", "short title")
	requestCmd.Flags().StringVar(&reqDetail, "description", "", "details")
	_ = requestCmd.MarkFlagRequired("requester")
	rootCmd.AddCommand(requestCmd)
}

func runRequest(cmd *cobra.Command, args []string) error {
	body, err := json.Marshal(map[string]any{
		"requester_id": reqUser,
		"lat":          reqLat,
		"lon":          reqLon,
		"priority":     reqPrio,
		"title":        reqTitle,
		"description":  reqDetail,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, apiURL+"/requests", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("create failed (%d): %s", resp.StatusCode, out)
	}
	fmt.Println(string(out))
	return nil
}
