package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxkimambo/shed/internal/report"
	"github.com/maxkimambo/shed/internal/shed"
)

var (
	sizeBytesOnly bool
	sizeScale     int
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Print the memory a scheduler of the configured capacity needs",
	Long: `Print the size of the memory block a scheduler needs for the configured task,
dependency and channel capacity. The block is allocated once and never grows.

EXAMPLES:
# Size for the values in a config file
shed size --config shed.yaml

# Size for an explicit capacity, as a plain number
shed size --max-tasks 4096 --max-dependencies 16384 --channels 2 --bytes

# Show how the size grows when the capacity is doubled three times
shed size --scale 3
`,
	Args: cobra.NoArgs,
	RunE: runSize,
}

func init() {
	addSchedulerFlags(sizeCmd.Flags())
	sizeCmd.Flags().BoolVar(&sizeBytesOnly, "bytes", false, "Print only the byte count")
	sizeCmd.Flags().IntVar(&sizeScale, "scale", 0, "Also show the size for this many doublings of the capacity")
}

func runSize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if sizeBytesOnly {
		fmt.Fprintln(cmd.OutOrStdout(), cfg.RequiredBytes())
		return nil
	}

	rows := sizeRows(cfg.Scheduler.MaxTasks, cfg.Scheduler.MaxDependencies, cfg.ChannelCount(), sizeScale)
	fmt.Fprintln(cmd.OutOrStdout(), report.SizeTable(rows).String())
	return nil
}

// sizeRows returns the configured capacity followed by up to scale
// doublings that stay within the scheduler's limits.
func sizeRows(maxTasks, maxDependencies uint32, channels uint8, scale int) []report.SizeRow {
	rows := []report.SizeRow{{MaxTasks: maxTasks, MaxDependencies: maxDependencies, Channels: channels}}
	for i := 0; i < scale; i++ {
		last := rows[len(rows)-1]
		next := report.SizeRow{MaxTasks: last.MaxTasks * 2, MaxDependencies: last.MaxDependencies * 2, Channels: channels}
		if next.MaxTasks > shed.MaxCapacity || next.MaxDependencies > shed.MaxCapacity {
			break
		}
		rows = append(rows, next)
	}
	return rows
}
