package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	iso "github.com/bgrewell/iso9660-studio"
	"github.com/bgrewell/iso9660-studio/pkg/eltorito"
	"github.com/bgrewell/iso9660-studio/pkg/logging"
	"github.com/bgrewell/iso9660-studio/pkg/options"
	"github.com/bgrewell/usage"
	"github.com/theckman/yacspin"
	"golang.org/x/term"
)

func main() {
	u := usage.NewUsage(
		usage.WithApplicationName("isobuilder"),
		usage.WithApplicationDescription("isobuilder packs a directory tree into an ISO 9660 image, with optional Joliet and El Torito boot support."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Enable debug logging", "", nil)
	joliet := u.AddBooleanOption("j", "joliet", true, "Build a parallel Joliet tree alongside the ISO 9660 tree", "", nil)
	bootImage := u.AddBooleanOption("b", "boot", false, "Treat <source>/[BOOT]/boot.img, if present, as an El Torito boot image", "", nil)
	source := u.AddArgument(1, "source", "Directory tree to pack", "")
	dest := u.AddArgument(2, "dest", "Path to write the resulting ISO image to", "")

	if !u.Parse() {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}
	if *help {
		u.PrintUsage()
		os.Exit(0)
	}
	if source == nil || *source == "" || dest == nil || *dest == "" {
		u.PrintError(fmt.Errorf("both <source> and <dest> must be provided"))
		os.Exit(1)
	}

	level := logging.INFO
	if *verbose {
		level = logging.DEBUG
	}
	logger := logging.NewSimpleLogger(os.Stderr, level, term.IsTerminal(int(os.Stderr.Fd())))

	jolietLevel := 0
	if *joliet {
		jolietLevel = 2
	}

	volumeLabel := strings.ToUpper(filepath.Base(filepath.Clean(*source)))
	img, err := iso.New("ISOBUILDER", volumeLabel, volumeLabel,
		options.WithLogger(logger),
		options.WithJolietLevel(jolietLevel),
	)
	if err != nil {
		u.PrintError(fmt.Errorf("failed to initialize image: %w", err))
		os.Exit(1)
	}

	spin := newSpinner()
	if spin != nil {
		spin.Message("scanning " + *source)
		_ = spin.Start()
	}

	bootDir := filepath.Join(*source, "[BOOT]")
	fileCount := 0
	err = filepath.WalkDir(*source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(*source, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if *bootImage && strings.HasPrefix(path, bootDir) {
			return nil
		}

		imagePath := filepath.ToSlash(rel)
		if d.IsDir() {
			return img.AddDirectory(imagePath)
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		fileCount++
		if spin != nil {
			spin.Message(fmt.Sprintf("adding %s (%d)", imagePath, fileCount))
		}
		return img.AddFile(imagePath, f)
	})
	if err != nil {
		if spin != nil {
			_ = spin.StopFail()
		}
		u.PrintError(fmt.Errorf("failed to add %s to image: %w", *source, err))
		os.Exit(1)
	}

	if *bootImage {
		bootPath := filepath.Join(bootDir, "boot.img")
		bf, err := os.Open(bootPath)
		if err == nil {
			defer bf.Close()
			addErr := img.AddFile("boot.img", bf)
			if addErr == nil {
				addErr = img.AddElTorito("boot.img", "boot.cat", iso.WithBootPlatform(eltorito.BIOS))
			}
			if addErr != nil {
				if spin != nil {
					_ = spin.StopFail()
				}
				u.PrintError(fmt.Errorf("failed to add El Torito boot image: %w", addErr))
				os.Exit(1)
			}
		}
	}

	if spin != nil {
		spin.Message("writing " + *dest)
	}

	out, err := os.Create(*dest)
	if err != nil {
		if spin != nil {
			_ = spin.StopFail()
		}
		u.PrintError(fmt.Errorf("failed to create %s: %w", *dest, err))
		os.Exit(1)
	}
	writeErr := img.Write(out)
	closeErr := out.Close()
	if writeErr != nil {
		if spin != nil {
			_ = spin.StopFail()
		}
		u.PrintError(fmt.Errorf("failed to write ISO: %w", writeErr))
		os.Exit(1)
	}
	if closeErr != nil {
		if spin != nil {
			_ = spin.StopFail()
		}
		u.PrintError(fmt.Errorf("failed to close %s: %w", *dest, closeErr))
		os.Exit(1)
	}

	if spin != nil {
		spin.StopMessage(fmt.Sprintf("wrote %s (%d files)", *dest, fileCount))
		_ = spin.Stop()
	} else {
		fmt.Printf("wrote %s (%d files)\n", *dest, fileCount)
	}
}

// newSpinner returns nil when stderr isn't a terminal, so piping isobuilder's
// output doesn't fill a log file with spinner noise.
func newSpinner() *yacspin.Spinner {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	cfg := yacspin.Config{
		Writer:          os.Stderr,
		Frequency:       100_000_000, // 100ms
		CharSet:         yacspin.CharSets[9],
		Suffix:          " ",
		SuffixAutoColon: true,
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	}
	s, err := yacspin.New(cfg)
	if err != nil {
		return nil
	}
	return s
}
