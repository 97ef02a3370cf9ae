package instance

import (
	"bytes"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
)

func stringifyInstances(instances []appInstance) string {
	buff := &bytes.Buffer{}
	table := tablewriter.NewWriter(buff)
	table.SetBorder(false)
	table.SetHeader([]string{
		"ID",
		"Tenant",
		"Application",
		"File",
		"Status",
		"Progress",
		"Exception",
		"Updated",
	})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, inst := range instances {
		table.Append([]string{
			inst.ID,
			inst.Tenant,
			inst.Application,
			inst.FileName,
			inst.Status,
			fmt.Sprintf("%d/%d", inst.CompletedTasks, inst.TotalTasks),
			exceptionLabel(inst.Exception),
			inst.LastUpdatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
	return buff.String()
}

func stringifyInstance(inst appInstance) string {
	buff := &bytes.Buffer{}
	buff.WriteString(fmt.Sprintf("ID          : %s\n", inst.ID))
	buff.WriteString(fmt.Sprintf("Tenant      : %s (%s)\n", inst.Tenant, inst.Zone))
	buff.WriteString(fmt.Sprintf("Application : %s\n", inst.Application))
	buff.WriteString(fmt.Sprintf("File        : %s\n", inst.FileName))
	buff.WriteString(fmt.Sprintf("Status      : %s\n", inst.Status))
	buff.WriteString(fmt.Sprintf("Impact      : %s\n", inst.ImpactTier))
	buff.WriteString(fmt.Sprintf("Retries     : %d\n", inst.RetryCount))
	buff.WriteString(fmt.Sprintf("Exception   : %s\n", exceptionLabel(inst.Exception)))
	if inst.SOPCode != "" {
		buff.WriteString(fmt.Sprintf("SOP         : %s\n", inst.SOPCode))
	}
	buff.WriteString(fmt.Sprintf("Notified    : %t\n", inst.IsNotified))
	buff.WriteString(fmt.Sprintf("Version     : %d\n", inst.Version))

	table := tablewriter.NewWriter(buff)
	table.SetBorder(false)
	table.SetHeader([]string{
		"Task ID",
		"Name",
		"Status",
		"Attempts",
		"Error",
	})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, t := range inst.Tasks {
		table.Append([]string{
			t.ID,
			t.Name,
			t.Status,
			fmt.Sprintf("%d", t.RetryAttempts),
			t.ErrorCode,
		})
	}
	table.Render()
	return buff.String()
}

func stringifyAudit(events []auditEvent) string {
	buff := &bytes.Buffer{}
	table := tablewriter.NewWriter(buff)
	table.SetBorder(false)
	table.SetHeader([]string{
		"Timestamp",
		"Action",
		"Actor",
		"Role",
		"Task",
		"Reason",
	})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, e := range events {
		table.Append([]string{
			e.Timestamp.Format(time.RFC3339),
			e.Action,
			e.Actor,
			e.ActorRole,
			e.TaskID,
			e.Reason,
		})
	}
	table.Render()
	return buff.String()
}

func exceptionLabel(e *exception) string {
	if e == nil {
		return "-"
	}
	return fmt.Sprintf("%s/%s", e.Type, e.Code)
}
