package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dmphub/dmphub/pkg/dmp"
	"github.com/dmphub/dmphub/pkg/registry"
)

var (
	getVersion string
	updateNote string
	bodyFile   string
)

var getCmd = &cobra.Command{
	Use:   "get IDENTIFIER",
	Short: "Fetch a record (latest by default)",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var versionsCmd = &cobra.Command{
	Use:   "versions IDENTIFIER",
	Short: "List the retrievable versions of a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersions,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new record from a JSON body",
	Long: `Register a new record. The body is read from --file (or stdin with -f -).
The acting provenance must be owner-capable; most provenances get a minted
identifier, while pre-registering systems supply their own.`,
	RunE: runCreate,
}

var updateCmd = &cobra.Command{
	Use:   "update IDENTIFIER",
	Short: "Apply an update to a record on behalf of a provenance",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdate,
}

var tombstoneCmd = &cobra.Command{
	Use:   "tombstone IDENTIFIER",
	Short: "Retire a record (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTombstone,
}

var eventsCmd = &cobra.Command{
	Use:   "events IDENTIFIER",
	Short: "List change events for a record, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvents,
}

func init() {
	getCmd.Flags().StringVar(&getVersion, "version", "", "Version to fetch: latest, tombstone, or an RFC3339 timestamp")
	createCmd.Flags().StringVarP(&bodyFile, "file", "f", "", "Path to the JSON record body (use - for stdin)")
	updateCmd.Flags().StringVarP(&bodyFile, "file", "f", "", "Path to the JSON record body (use - for stdin)")
	updateCmd.Flags().StringVar(&updateNote, "note", "", "Route the update through the modifications ledger with this note")
}

// readBody loads a JSON body from --file, or stdin when the flag is "-".
func readBody(v any) error {
	if bodyFile == "" {
		return fmt.Errorf("a JSON body is required (use --file or -f -)")
	}
	var r io.Reader
	if bodyFile == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(bodyFile)
		if err != nil {
			return fmt.Errorf("open body file: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func recordPath(identifier string) string {
	// DOI identifiers contain slashes; the server matches them with a wildcard
	// route, so the path is left unescaped.
	return "/dmps/" + identifier
}

func runGet(cmd *cobra.Command, args []string) error {
	client := newClient()

	path := recordPath(args[0])
	if getVersion != "" {
		path += "?version=" + url.QueryEscape(getVersion)
	}
	var rec dmp.Record
	if err := client.getJSON(path, &rec); err != nil {
		return err
	}

	if outputFmt == "table" {
		printRecordTable(&rec)
		return nil
	}
	return printOutput(rec)
}

func printRecordTable(rec *dmp.Record) {
	headers := []string{"Field", "Value"}
	rows := [][]string{
		{"Identifier", rec.Identifier},
		{"Title", truncate(rec.Title, 60)},
		{"Owner", rec.OwnerProvenanceID},
		{"Private", strconv.FormatBool(rec.Private)},
		{"Modified", rec.Modified.Format(dmp.TimestampLayout)},
		{"Ledger entries", strconv.Itoa(len(rec.ModificationsLog))},
	}
	printTable(headers, rows)
}

func runVersions(cmd *cobra.Command, args []string) error {
	client := newClient()

	var refs []registry.VersionRef
	if err := client.getJSON("/dmps/versions/"+args[0], &refs); err != nil {
		return err
	}

	if outputFmt == "table" {
		rows := make([][]string, 0, len(refs))
		for _, ref := range refs {
			rows = append(rows, []string{ref.VersionKey, ref.Locator})
		}
		printTable([]string{"Version", "Locator"}, rows)
		return nil
	}
	return printOutput(refs)
}

func runCreate(cmd *cobra.Command, args []string) error {
	if resolvedProvenance() == "" {
		return fmt.Errorf("a provenance key is required (use --provenance or DMPHUB_PROVENANCE)")
	}
	var body dmp.Record
	if err := readBody(&body); err != nil {
		return err
	}

	client := newClient()
	var rec dmp.Record
	if err := client.do(http.MethodPost, "/dmps", body, &rec); err != nil {
		return err
	}

	fmt.Printf("Created %s\n", rec.Identifier)
	if outputFmt != "table" {
		return printOutput(rec)
	}
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if resolvedProvenance() == "" {
		return fmt.Errorf("a provenance key is required (use --provenance or DMPHUB_PROVENANCE)")
	}
	var body dmp.Record
	if err := readBody(&body); err != nil {
		return err
	}

	path := recordPath(args[0])
	if updateNote != "" {
		path += "?note=" + url.QueryEscape(updateNote)
	}

	client := newClient()
	var rec dmp.Record
	err := client.do(http.MethodPut, path, body, &rec)
	if err == errUnchanged {
		fmt.Printf("%s is unchanged\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Updated %s\n", rec.Identifier)
	if outputFmt != "table" {
		return printOutput(rec)
	}
	return nil
}

func runTombstone(cmd *cobra.Command, args []string) error {
	if resolvedProvenance() == "" {
		return fmt.Errorf("a provenance key is required (use --provenance or DMPHUB_PROVENANCE)")
	}
	client := newClient()
	var rec dmp.Record
	if err := client.do(http.MethodDelete, recordPath(args[0]), nil, &rec); err != nil {
		return err
	}
	fmt.Printf("Tombstoned %s\n", args[0])
	return nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	client := newClient()

	var events []registry.ChangeEventRecord
	if err := client.getJSON("/events/"+args[0], &events); err != nil {
		return err
	}

	if outputFmt == "table" {
		rows := make([][]string, 0, len(events))
		for _, ev := range events {
			rows = append(rows, []string{
				ev.OccurredAt.Format(dmp.TimestampLayout),
				ev.VersionKey,
				strconv.FormatBool(ev.ChangedByOwner),
			})
		}
		printTable([]string{"Occurred", "Version", "By owner"}, rows)
		return nil
	}
	return printOutput(events)
}
