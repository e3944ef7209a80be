package cmd

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

// newTriggerCmd submits a booking request to a running server, for use from
// the terminal instead of the dashboard.
func newTriggerCmd() *cobra.Command {
	var (
		serverURL string
		date      string
		clock     string
	)

	c := &cobra.Command{
		Use:   "trigger",
		Short: "Request a booking for a date and time via a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" || clock == "" {
				return fmt.Errorf("--date and --time are required")
			}

			rc := resty.New().SetBaseURL(serverURL).SetTimeout(30 * time.Second)

			var out struct {
				Accepted bool   `json:"accepted"`
				Mode     string `json:"mode"`
				RunAt    string `json:"runAt"`
				ID       string `json:"id"`
				Message  string `json:"message"`
				Error    string `json:"error"`
			}
			resp, err := rc.R().
				SetBody(map[string]string{"targetDate": date, "targetTime": clock}).
				SetResult(&out).
				SetError(&out).
				Post("/api/trigger")
			if err != nil {
				return err
			}
			if resp.IsError() {
				return fmt.Errorf("server rejected request (status=%d): %s", resp.StatusCode(), out.Error)
			}

			fmt.Printf("accepted (mode=%s)\n", out.Mode)
			if out.RunAt != "" {
				fmt.Printf("runs at: %s\n", out.RunAt)
			}
			if out.ID != "" {
				fmt.Printf("trigger id: %s\n", out.ID)
			}
			if out.Message != "" {
				fmt.Println(out.Message)
			}
			return nil
		},
	}

	c.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the courtsched server")
	c.Flags().StringVar(&date, "date", "", "reservation date (YYYY-MM-DD)")
	c.Flags().StringVar(&clock, "time", "", "reservation time (HH:MM)")
	return c
}
