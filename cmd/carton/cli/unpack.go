package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/carton"
)

// Unpack command flags.
var (
	unpackOverwrite   bool
	unpackStripPrefix string
	unpackSymlinks    string
	unpackKeepGoing   bool
	unpackMaxFiles    int
	unpackMaxSize     string
)

var unpackCmd = &cobra.Command{
	Use:   "unpack <archive> [dest]",
	Short: "Extract an archive to a directory",
	Long: `Unpack extracts an archive into the destination directory, creating it
if needed. The destination defaults to the current directory.

Entry names are validated against path traversal. Symlink handling is
controlled with --symlinks:
  allow       create links as stored (default)
  disallow    reject links whose target escapes the destination
  relativize  rewrite absolute targets to stay inside the destination

Examples:
  carton unpack dist.tar.gz ./out
  carton unpack --strip-prefix dist dist.tar.gz ./out
  carton unpack --symlinks disallow untrusted.zip ./out
  carton unpack --keep-going --max-files 10000 big.tar.zst ./out`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUnpack,
}

func init() {
	unpackCmd.Flags().BoolVar(&unpackOverwrite, "overwrite", true, "Replace existing files")
	unpackCmd.Flags().StringVar(&unpackStripPrefix, "strip-prefix", "", "Remove a leading path from entry names")
	unpackCmd.Flags().StringVar(&unpackSymlinks, "symlinks", "", "Symlink policy: allow, disallow, or relativize")
	unpackCmd.Flags().BoolVarP(&unpackKeepGoing, "keep-going", "k", false, "Skip entries that fail instead of stopping")
	unpackCmd.Flags().IntVar(&unpackMaxFiles, "max-files", 0, "Abort after this many files (0 = unlimited)")
	unpackCmd.Flags().StringVar(&unpackMaxSize, "max-size", "", "Abort past this much extracted data, e.g. 2GB")
	rootCmd.AddCommand(unpackCmd)
}

func runUnpack(_ *cobra.Command, args []string) error {
	archivePath := args[0]
	dest := "."
	if len(args) > 1 {
		dest = args[1]
	}

	opts, err := unpackOptions()
	if err != nil {
		return err
	}

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

	ctx, cancel := signalContext()
	defer cancel()

	bar := newByteBar(-1, "Unpacking")
	var extracted int
	opts = append(opts, carton.WithPostProcess(func(entry carton.Entry, _ string) error {
		extracted++
		addToBar(bar, entry.Size)
		return nil
	}))

	if err := carton.Extract(ctx, codec, dest, opts...); err != nil {
		return err
	}
	finishBar(bar)

	fmt.Printf("Extracted %d entries to %s\n", extracted, dest)
	return nil
}

// unpackOptions assembles extract options from flags and config defaults.
func unpackOptions() ([]carton.ExtractOption, error) {
	opts := []carton.ExtractOption{
		carton.WithOverwrite(unpackOverwrite),
		carton.WithLogger(newLogger()),
	}

	if unpackStripPrefix != "" {
		opts = append(opts, carton.WithStripPrefix(unpackStripPrefix))
	}

	policy := unpackSymlinks
	if policy == "" {
		policy = viper.GetString("unpack.symlinks")
	}
	switch policy {
	case "", "allow":
	case "disallow":
		opts = append(opts, carton.WithSymlinkPolicy(carton.SymlinkDisallow))
	case "relativize":
		opts = append(opts, carton.WithSymlinkPolicy(carton.SymlinkRelativizeAbsolute))
	default:
		return nil, fmt.Errorf("unknown symlink policy %q", policy)
	}

	if unpackKeepGoing {
		opts = append(opts, carton.WithErrorHandler(func(entry carton.Entry, err error) carton.ErrorAction {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", entry.Name, err)
			return carton.Skip
		}))
	}

	limits, err := unpackLimits()
	if err != nil {
		return nil, err
	}
	if limits != (carton.ExtractLimits{}) {
		opts = append(opts, carton.WithExtractLimits(limits))
	}
	return opts, nil
}

func unpackLimits() (carton.ExtractLimits, error) {
	var limits carton.ExtractLimits

	limits.MaxFiles = unpackMaxFiles
	if limits.MaxFiles == 0 {
		limits.MaxFiles = viper.GetInt("unpack.max-files")
	}

	maxSize := unpackMaxSize
	if maxSize == "" {
		maxSize = viper.GetString("unpack.max-size")
	}
	if maxSize != "" {
		size, err := humanize.ParseBytes(maxSize)
		if err != nil {
			return limits, fmt.Errorf("invalid --max-size %q: %w", maxSize, err)
		}
		limits.MaxTotalSize = int64(size) //nolint:gosec // G115: practical sizes fit int64
	}
	return limits, nil
}
