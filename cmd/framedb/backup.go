package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ulikunitz/xz"

	"github.com/tdnguyen214/framedb/internal/logging"
)

// BackupCmd streams the database file through an xz writer. The source file
// should be quiesced (or flushed via FlushAllPages) first; backup reads the
// file as-is.
type BackupCmd struct {
	Path   string `name:"path" short:"p" required:"" help:"Database file path" type:"path"`
	Output string `name:"output" short:"o" required:"" help:"Archive output path (.xz)" type:"path"`
}

func (c *BackupCmd) Run() error {
	src, err := os.Open(c.Path)
	if err != nil {
		return fmt.Errorf("open database file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(c.Output)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer dst.Close()

	w, err := xz.NewWriter(dst)
	if err != nil {
		return fmt.Errorf("xz writer: %w", err)
	}
	n, err := io.Copy(w, src)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return fmt.Errorf("sync archive: %w", err)
	}

	logging.Info("backup complete", "path", c.Path, "output", c.Output, "bytes", n)
	return nil
}

// RestoreCmd reverses BackupCmd.
type RestoreCmd struct {
	Input  string `name:"input" short:"i" required:"" help:"Archive input path (.xz)" type:"path"`
	Output string `name:"output" short:"o" required:"" help:"Database file output path" type:"path"`
}

func (c *RestoreCmd) Run() error {
	if _, err := os.Stat(c.Output); err == nil {
		return fmt.Errorf("refusing to overwrite existing file %s", c.Output)
	}

	src, err := os.Open(c.Input)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer src.Close()

	r, err := xz.NewReader(src)
	if err != nil {
		return fmt.Errorf("xz reader: %w", err)
	}

	dst, err := os.Create(c.Output)
	if err != nil {
		return fmt.Errorf("create database file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, r)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return fmt.Errorf("sync database file: %w", err)
	}

	logging.Info("restore complete", "input", c.Input, "output", c.Output, "bytes", n)
	return nil
}
