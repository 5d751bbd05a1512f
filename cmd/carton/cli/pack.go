package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/carton"
)

// Pack command flags.
var (
	packLevel   int
	packPrefix  string
	packExclude []string
)

var packCmd = &cobra.Command{
	Use:   "pack <archive> <source>...",
	Short: "Create an archive from files and directories",
	Long: `Pack creates an archive from the given files and directories.

The archive format is chosen from the extension: .tar, .tar.gz, .tgz,
.tar.zst, .tzst, .tar.lz4, or .zip. Directories are added recursively;
symlinks are archived as links, never followed.

Examples:
  carton pack dist.tar.gz ./build
  carton pack -p release src/ LICENSE README.md
  carton pack --exclude '*.log' logs.zip /var/log/myapp`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPack,
}

func init() {
	packCmd.Flags().IntVarP(&packLevel, "level", "l", 0, "Compression level 1-9 (0 = default)")
	packCmd.Flags().StringVarP(&packPrefix, "prefix", "p", "", "Prepend a directory prefix to all entry names")
	packCmd.Flags().StringArrayVar(&packExclude, "exclude", nil, "Skip entries whose base name matches the glob (repeatable)")
	rootCmd.AddCommand(packCmd)
}

func runPack(_ *cobra.Command, args []string) error {
	archivePath, sources := args[0], args[1:]

	level := packLevel
	if level == 0 {
		level = viper.GetInt("pack.level")
	}

	out, err := os.Create(archivePath) //nolint:gosec // G304: user-supplied output path is the point
	if err != nil {
		return err
	}

	bar := newByteBar(-1, "Packing")
	var sink io.Writer = out
	if bar != nil {
		sink = io.MultiWriter(out, bar)
	}

	codec, err := newWriteCodec(sink, archivePath, level)
	if err != nil {
		out.Close()
		return err
	}

	builder := carton.NewBuilder(codec, newLogger())
	if len(packExclude) > 0 {
		builder.SetFilter(excludeFilter(packExclude))
	}

	if err := addSources(builder, sources); err != nil {
		builder.Close()
		out.Close()
		return err
	}
	if err := builder.Close(); err != nil {
		out.Close()
		return err
	}
	finishBar(bar)
	if err := out.Close(); err != nil {
		return err
	}

	fmt.Printf("Created %s\n", archivePath)
	return nil
}

// addSources adds each source path to the archive. Directories are added
// as trees named after their base name, joined with the pack prefix.
func addSources(builder *carton.Builder, sources []string) error {
	for _, src := range sources {
		info, err := os.Lstat(src)
		if err != nil {
			return err
		}
		name := filepath.Base(filepath.Clean(src))
		if packPrefix != "" {
			name = packPrefix + "/" + name
		}
		if info.IsDir() {
			if err := builder.AddTree(name, src); err != nil {
				return err
			}
			continue
		}
		if err := builder.AddFile(name, src); err != nil {
			return err
		}
	}
	return nil
}

// excludeFilter builds an entry filter rejecting names whose base matches
// any of the given globs.
func excludeFilter(globs []string) carton.Filter {
	return func(name, fsPath string) bool {
		base := name
		if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
			base = name[idx+1:]
		}
		for _, glob := range globs {
			if ok, err := filepath.Match(glob, base); err == nil && ok {
				return false
			}
		}
		return true
	}
}
