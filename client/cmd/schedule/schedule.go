package schedule

import (
	"bytes"
	"errors"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const schedulesPath = "/api/v1/schedules"

var errJobIDRequired = errors.New("job id is required")

type lastRun struct {
	InstanceID string    `json:"instance_id"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
	Trigger    string    `json:"trigger"`
}

type job struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Tenant          string    `json:"tenant"`
	Application     string    `json:"application"`
	Cron            string    `json:"cron"`
	Timezone        string    `json:"timezone"`
	Status          string    `json:"status"`
	NextExpectedRun time.Time `json:"next_expected_run"`
	LastRun         *lastRun  `json:"last_run"`
}

type reasonRequest struct {
	Reason    string `json:"reason"`
	Confirmed bool   `json:"confirmed,omitempty"`
}

// NewScheduleCommand initializes command for scheduled jobs
func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Monitor scheduled jobs",
		Long: heredoc.Doc(`Monitor scheduled jobs, acknowledge overdue runs
			and trigger jobs outside their cron slots.`),
		Annotations: map[string]string{
			"group:core": "true",
		},
	}
	cmd.AddCommand(
		NewListCommand(),
		NewAcknowledgeCommand(),
		NewTriggerCommand(),
		NewExecutionsCommand(),
		NewSkipExecutionCommand(),
		NewRerunExecutionCommand(),
	)
	return cmd
}

func requireJobID(_ *cobra.Command, args []string) error {
	if len(args) < 1 {
		return errJobIDRequired
	}
	return nil
}

func stringifyJobs(jobs []job) string {
	buff := &bytes.Buffer{}
	table := tablewriter.NewWriter(buff)
	table.SetBorder(false)
	table.SetHeader([]string{
		"ID",
		"Tenant",
		"Application",
		"Cron",
		"Status",
		"Next Expected Run",
		"Last Run",
	})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, j := range jobs {
		last := "-"
		if j.LastRun != nil {
			last = j.LastRun.At.Format(time.RFC3339) + " " + j.LastRun.Status + " (" + j.LastRun.Trigger + ")"
		}
		table.Append([]string{
			j.ID,
			j.Tenant,
			j.Application,
			j.Cron + " " + j.Timezone,
			j.Status,
			j.NextExpectedRun.Format(time.RFC3339),
			last,
		})
	}
	table.Render()
	return buff.String()
}
