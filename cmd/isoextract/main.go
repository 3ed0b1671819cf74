package main

import (
	"fmt"
	"os"

	iso "github.com/bgrewell/iso9660-studio"
	"github.com/bgrewell/iso9660-studio/pkg/logging"
	"github.com/bgrewell/iso9660-studio/pkg/options"
	"github.com/bgrewell/usage"
	"golang.org/x/term"
)

func main() {
	u := usage.NewUsage(
		usage.WithApplicationName("isoextract"),
		usage.WithApplicationDescription("isoextract unpacks an ISO 9660 image, with optional Rock Ridge, Joliet and El Torito boot image extraction."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Enable debug logging", "", nil)
	trace := u.AddBooleanOption("vv", "trace", false, "Enable trace logging", "", nil)
	bootImages := u.AddBooleanOption("b", "boot", false, "Extract boot images (El Torito)", "", nil)
	rockRidge := u.AddBooleanOption("r", "rockridge", true, "Enable Rock Ridge support", "", nil)
	enhancedVol := u.AddBooleanOption("e", "enhanced", true, "Prefer the Joliet volume descriptor's tree over the primary's", "", nil)
	stripVer := u.AddBooleanOption("s", "strip", true, "Strip version info from extracted filenames", "", nil)
	isoPath := u.AddArgument(1, "iso-path", "Path to the ISO image to extract", "")
	outputDir := u.AddArgument(2, "output-dir", "Directory to extract into", "./extracted")

	if !u.Parse() {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}
	if *help {
		u.PrintUsage()
		os.Exit(0)
	}
	if isoPath == nil || *isoPath == "" {
		u.PrintError(fmt.Errorf("<iso-path> must be provided"))
		os.Exit(1)
	}
	if outputDir == nil || *outputDir == "" {
		dir := "./extracted"
		outputDir = &dir
	}

	level := logging.INFO
	switch {
	case *trace:
		level = logging.TRACE
	case *verbose:
		level = logging.DEBUG
	}
	logger := logging.NewSimpleLogger(os.Stderr, level, term.IsTerminal(int(os.Stderr.Fd())))

	img, err := iso.Open(
		*isoPath,
		options.WithLogger(logger),
		options.WithEltoritoEnabled(*bootImages),
		options.WithRockRidgeEnabled(*rockRidge),
		options.WithPreferEnhancedVD(*enhancedVol),
		options.WithStripVersionInfo(*stripVer),
		options.WithBootFileLocation("[BOOT]"),
	)
	if err != nil {
		u.PrintError(fmt.Errorf("failed to open ISO: %w", err))
		os.Exit(1)
	}
	defer img.Close()

	if err := img.Extract(*outputDir, *bootImages); err != nil {
		u.PrintError(fmt.Errorf("failed to extract image: %w", err))
		os.Exit(1)
	}

	fmt.Printf("extraction completed successfully to %q\n", *outputDir)
}
