package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dmphub/dmphub/pkg/jobs"
)

var (
	jobsIdentifier string
	jobsState      string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect the augment-job queue",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List augment jobs",
	RunE:  runJobsList,
}

var jobsGetCmd = &cobra.Command{
	Use:   "get JOB_ID",
	Short: "Show one augment job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsGet,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel JOB_ID",
	Short: "Cancel a queued augment job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsIdentifier, "identifier", "", "Filter by record identifier")
	jobsListCmd.Flags().StringVar(&jobsState, "state", "", "Filter by job state")
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsGetCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
}

type jobListResponse struct {
	Jobs          []jobs.AugmentJob `json:"jobs"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
	TotalSize     int               `json:"totalSize"`
}

func runJobsList(cmd *cobra.Command, args []string) error {
	client := newClient()

	q := url.Values{}
	if jobsIdentifier != "" {
		q.Set("identifier", jobsIdentifier)
	}
	if jobsState != "" {
		q.Set("state", jobsState)
	}
	path := "/jobs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out jobListResponse
	if err := client.getJSON(path, &out); err != nil {
		return err
	}

	if outputFmt == "table" {
		rows := make([][]string, 0, len(out.Jobs))
		for _, job := range out.Jobs {
			rows = append(rows, []string{
				job.ID,
				job.Identifier,
				job.Harvester,
				string(job.State),
				strconv.Itoa(job.AttemptCount),
			})
		}
		printTable([]string{"ID", "Identifier", "Harvester", "State", "Attempts"}, rows)
		fmt.Printf("\n%d job(s) total\n", out.TotalSize)
		return nil
	}
	return printOutput(out)
}

func runJobsGet(cmd *cobra.Command, args []string) error {
	client := newClient()

	var job jobs.AugmentJob
	if err := client.getJSON("/jobs/"+url.PathEscape(args[0]), &job); err != nil {
		return err
	}

	if outputFmt == "table" {
		rows := [][]string{
			{"ID", job.ID},
			{"Identifier", job.Identifier},
			{"Harvester", job.Harvester},
			{"State", string(job.State)},
			{"Attempts", strconv.Itoa(job.AttemptCount)},
			{"Entries added", strconv.Itoa(job.EntriesAdded)},
			{"Message", truncate(job.Message, 60)},
		}
		printTable([]string{"Field", "Value"}, rows)
		return nil
	}
	return printOutput(job)
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	client := newClient()
	if err := client.do(http.MethodDelete, "/jobs/"+url.PathEscape(args[0]), nil, nil); err != nil {
		return err
	}
	fmt.Printf("Canceled job %s\n", args[0])
	return nil
}
