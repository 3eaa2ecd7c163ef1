package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/litescript/ls-abb/internal/version"
)

func runVersion(ctx context.Context, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	check := fs.Bool("check", false, "check GitHub for a newer release")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(w, "abb v%s\n", version.Version)
	if !*check {
		return nil
	}

	info := version.CheckForUpdate(ctx)
	switch {
	case info.Error != nil:
		return info.Error
	case info.UpdateAvailable:
		fmt.Fprintf(w, "Update available: v%s\n  %s\n", info.LatestVersion, version.InstallCommand())
	default:
		fmt.Fprintln(w, "Up to date.")
	}
	return nil
}
