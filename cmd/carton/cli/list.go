package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/carton"
	"github.com/meigma/carton/internal/fsmode"
)

var (
	listLong  bool
	listHuman bool
)

var listCmd = &cobra.Command{
	Use:     "ls <archive>",
	Aliases: []string{"list"},
	Short:   "List the entries of an archive",
	Long: `Ls displays the entries of an archive without extracting it.

Examples:
  carton ls dist.tar.gz
  carton ls -l dist.tar.gz
  carton ls -lH layer.estargz`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listLong, "long", "l", false, "Use long listing format")
	listCmd.Flags().BoolVarP(&listHuman, "human-readable", "H", false, "Print sizes in human-readable format")
	rootCmd.AddCommand(listCmd)
}

func runList(_ *cobra.Command, args []string) error {
	archivePath := args[0]

	in, err := os.Open(archivePath) //nolint:gosec // G304: user-supplied archive path is the point
	if err != nil {
		return err
	}
	defer in.Close()

	codec, err := newReadCodec(in, archivePath)
	if err != nil {
		return err
	}
	defer codec.Close()

	var entries []carton.Entry
	for {
		entry, err := codec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	if listLong {
		printLongListing(os.Stdout, entries)
	} else {
		printShortListing(os.Stdout, entries)
	}
	return nil
}

// printShortListing prints just the entry names.
func printShortListing(w io.Writer, entries []carton.Entry) {
	for _, entry := range entries {
		fmt.Fprintln(w, entry.Name)
	}
}

// printLongListing prints mode, size, and name in ls -l style format.
func printLongListing(w io.Writer, entries []carton.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n",
			formatMode(entry),
			formatSize(entry),
			formatName(entry))
	}
	tw.Flush()
}

// formatMode renders an entry's kind and permissions in symbolic format
// (e.g., "-rw-r--r--").
func formatMode(entry carton.Entry) string {
	buf := make([]byte, 10)

	switch entry.Kind {
	case carton.KindDir:
		buf[0] = 'd'
	case carton.KindSymlink:
		buf[0] = 'l'
	default:
		buf[0] = '-'
	}

	mode := fsmode.FromBits(entry.Mode)
	const rwx = "rwx"
	for i := range 3 {
		for j := range 3 {
			//nolint:gosec // G115: i and j are in range 0-2, no overflow possible
			if mode&fs.FileMode(1<<uint(8-i*3-j)) != 0 {
				buf[1+i*3+j] = rwx[j]
			} else {
				buf[1+i*3+j] = '-'
			}
		}
	}

	return string(buf)
}

// formatSize formats entry size for display.
func formatSize(entry carton.Entry) string {
	if entry.Kind != carton.KindFile {
		return "-"
	}
	size := entry.Size
	if size < 0 {
		return "?"
	}
	if listHuman {
		return humanize.IBytes(uint64(size))
	}
	return strconv.FormatInt(size, 10)
}

func formatName(entry carton.Entry) string {
	if entry.Kind == carton.KindSymlink {
		return entry.Name + " -> " + entry.LinkTarget
	}
	return entry.Name
}
