package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/penwyp/go-claude-wrap/internal/core/model"
	"github.com/penwyp/go-claude-wrap/internal/util"
)

var (
	statsOutputFormat string
	statsRenewalDay   int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show session and token usage aggregates",
	Long: `Displays the active session window, monthly/weekly session counts,
token sums, billing-cycle aggregates when a renewal day is configured, and
activity patterns for the current month.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVarP(&statsOutputFormat, "output", "o", "table",
		"Output format (table, json)")
	statsCmd.Flags().IntVar(&statsRenewalDay, "renewal-day", 0,
		"Billing cycle renewal day of month (overrides config)")
}

// usageReport is the stats command's output shape.
type usageReport struct {
	ActiveSession   *model.Session       `json:"active_session"`
	TimeRemaining   *model.TimeRemaining `json:"time_remaining"`
	MonthlySessions int                  `json:"monthly_sessions"`
	WeeklySessions  int                  `json:"weekly_sessions"`
	MonthlyTokens   int64                `json:"monthly_tokens"`
	WeeklyTokens    int64                `json:"weekly_tokens"`
	BillingSessions *int                 `json:"billing_cycle_sessions,omitempty"`
	BillingTokens   *int64               `json:"billing_cycle_tokens,omitempty"`
	Analytics       *model.Analytics     `json:"analytics,omitempty"`
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, mgr, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	report := &usageReport{
		ActiveSession:   mgr.GetActiveSession(ctx),
		TimeRemaining:   mgr.GetSessionTimeRemaining(ctx),
		MonthlySessions: mgr.MonthlySessionCount(ctx),
		WeeklySessions:  mgr.WeeklySessionCount(ctx),
		MonthlyTokens:   mgr.MonthlyTokens(ctx),
		WeeklyTokens:    mgr.WeeklyTokens(ctx),
		Analytics:       mgr.DetailedAnalytics(ctx),
	}

	renewalDay := statsRenewalDay
	if renewalDay == 0 {
		if day, ok := cfg.SubscriptionRenewalDay(); ok {
			renewalDay = day
		}
	}
	if renewalDay != 0 {
		sessions, err := mgr.BillingCycleSessionCount(ctx, renewalDay)
		if err != nil {
			return err
		}
		tokens, err := mgr.BillingCycleTokens(ctx, renewalDay)
		if err != nil {
			return err
		}
		report.BillingSessions = &sessions
		report.BillingTokens = &tokens
	}

	if statsOutputFormat == "json" {
		data, err := sonic.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	printReport(report)
	return nil
}

func printReport(r *usageReport) {
	fmt.Println("Session usage")
	fmt.Println(strings.Repeat("-", 40))

	if r.ActiveSession == nil {
		fmt.Println("Active session:   none")
	} else {
		fmt.Printf("Active session:   %s\n", r.ActiveSession.ID)
		fmt.Printf("Window ends:      %s\n",
			time.UnixMilli(r.ActiveSession.EndTime).Format("15:04"))
		fmt.Printf("Session tokens:   %s\n", util.FormatNumber(r.ActiveSession.TotalTokens))
		if r.TimeRemaining != nil {
			fmt.Printf("Time remaining:   %dh %dm\n", r.TimeRemaining.Hours, r.TimeRemaining.Minutes)
		}
	}

	fmt.Printf("Sessions (month): %d\n", r.MonthlySessions)
	fmt.Printf("Sessions (week):  %d\n", r.WeeklySessions)
	fmt.Printf("Tokens (30d):     %s\n", util.FormatNumber(r.MonthlyTokens))
	fmt.Printf("Tokens (week):    %s\n", util.FormatNumber(r.WeeklyTokens))

	if r.BillingSessions != nil {
		fmt.Printf("Sessions (cycle): %d\n", *r.BillingSessions)
	}
	if r.BillingTokens != nil {
		fmt.Printf("Tokens (cycle):   %s\n", util.FormatNumber(*r.BillingTokens))
	}

	if r.Analytics != nil {
		fmt.Println()
		fmt.Printf("Most active hour: %02d:00\n", r.Analytics.MostActiveHour)
		fmt.Printf("Most active day:  %s\n", r.Analytics.MostActiveWeekday)
		fmt.Println("Last 7 days:")
		for _, day := range r.Analytics.Daily {
			fmt.Printf("  %s  %3d sessions  %10s tokens\n",
				day.Date, day.Sessions, util.FormatNumber(day.Tokens))
		}
	}
}
