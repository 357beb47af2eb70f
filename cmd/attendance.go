package cmd

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect and export the attendance ledger",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance records",
	Long: `List attendance records in the order they were marked.

Examples:
  # Everything
  face-attendance attendance list

  # One day
  face-attendance attendance list --date 2024-01-01
  face-attendance attendance list --date today`,
	Args: cobra.NoArgs,
	RunE: runAttendanceList,
}

var attendanceExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the attendance ledger to a CSV file",
	Long: `Write every attendance record to a CSV file with a Name,Date,Time header.
The file is replaced atomically.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttendanceExport,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd, attendanceExportCmd)

	attendanceListCmd.Flags().String("date", "", "Only show records of this day (YYYY-MM-DD or 'today')")
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	l, err := b.openLedger(ctx)
	if err != nil {
		return err
	}

	date := mustGetString(cmd, "date")
	switch date {
	case "":
	case "today":
		date = l.Today()
	default:
		if date, err = ledger.ParseDate(date); err != nil {
			return err
		}
	}

	records := slices.Collect(l.Query(date))
	if len(records) == 0 {
		fmt.Println("No attendance records")
		return nil
	}

	w := newTabWriter()
	fmt.Fprintln(w, "NAME\tDATE\tTIME")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Date, r.Time)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d records\n", len(records))
	return nil
}

func runAttendanceExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	l, err := b.openLedger(ctx)
	if err != nil {
		return err
	}
	if l.Count() == 0 {
		return errors.New("no attendance records to export")
	}

	if err := l.Export(args[0]); err != nil {
		return err
	}
	fmt.Printf("Exported %d records to %s\n", l.Count(), args[0])
	return nil
}
