// Command framedb is the operational CLI for framedb database files.
// It creates and inspects page files and exercises the buffer pool.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/tdnguyen214/framedb/internal/logging"
	"github.com/tdnguyen214/framedb/internal/storage/buffer"
	"github.com/tdnguyen214/framedb/internal/storage/disk"
	"github.com/tdnguyen214/framedb/internal/storage/page"
	util "github.com/tdnguyen214/framedb/internal/utils"
)

const version = "0.1.0"

// CLI defines the command-line interface for framedb.
var CLI struct {
	LogLevel string `name:"log-level" default:"info" help:"Log level (debug, info, warn, error)"`
	JSONLogs bool   `name:"json-logs" help:"Emit logs as JSON"`

	Init    InitCmd    `cmd:"" help:"Create a new database file"`
	Stat    StatCmd    `cmd:"" help:"Inspect a database file"`
	Bench   BenchCmd   `cmd:"" help:"Exercise the buffer pool against a database file"`
	Backup  BackupCmd  `cmd:"" help:"Compress a database file into an xz archive"`
	Restore RestoreCmd `cmd:"" help:"Restore a database file from an xz archive"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// fileMeta is the sidecar written next to the database file on init.
type fileMeta struct {
	InstanceID string `json:"instance_id"`
	PageSize   int    `json:"page_size"`
	CreatedAt  string `json:"created_at"`
}

func metaPath(dbPath string) string {
	return dbPath + ".meta.json"
}

// InitCmd creates a database file of zeroed pages plus its meta sidecar.
type InitCmd struct {
	Path  string `name:"path" short:"p" required:"" help:"Database file path" type:"path"`
	Pages int    `name:"pages" default:"16" help:"Number of pages to pre-allocate"`
}

func (c *InitCmd) Run() error {
	if c.Pages <= 0 {
		return util.ErrInvalidInitialPages
	}
	if _, err := os.Stat(c.Path); err == nil {
		return fmt.Errorf("refusing to overwrite existing file %s", c.Path)
	}

	opts := util.DefaultOptions()
	fm, err := disk.NewFileManager(c.Path, opts)
	if err != nil {
		return err
	}
	defer fm.Close()
	for i := 0; i < c.Pages; i++ {
		fm.AllocatePage()
	}

	meta := fileMeta{
		InstanceID: uuid.NewString(),
		PageSize:   util.PageSize,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := os.WriteFile(metaPath(c.Path), raw, 0o664); err != nil {
		return fmt.Errorf("write meta sidecar: %w", err)
	}

	logging.Info("initialized database", "path", c.Path, "pages", c.Pages, "instance", meta.InstanceID)
	return nil
}

// StatCmd prints file geometry and, with --digests, per-page BLAKE3 digests.
type StatCmd struct {
	Path    string `name:"path" short:"p" required:"" help:"Database file path" type:"path"`
	Digests bool   `name:"digests" help:"Print a BLAKE3 digest per page"`
}

func (c *StatCmd) Run() error {
	opts := util.DefaultOptions()
	opts.ReadOnly = true
	fm, err := disk.NewFileManager(c.Path, opts)
	if err != nil {
		return err
	}
	defer fm.Close()

	pages := fm.Size() / util.PageSize
	fmt.Printf("path:       %s\n", c.Path)
	fmt.Printf("page size:  %d\n", util.PageSize)
	fmt.Printf("pages:      %d\n", pages)
	fmt.Printf("file size:  %d bytes\n", fm.Size())

	if raw, err := os.ReadFile(metaPath(c.Path)); err == nil {
		var meta fileMeta
		if err := json.Unmarshal(raw, &meta); err == nil {
			fmt.Printf("instance:   %s\n", meta.InstanceID)
			fmt.Printf("created:    %s\n", meta.CreatedAt)
		}
	}

	if c.Digests {
		p := page.NewPage()
		for id := util.PageID(0); int64(id) < pages; id++ {
			if err := fm.ReadPage(id, p); err != nil {
				return err
			}
			sum := blake3.Sum256(p.Data[:])
			fmt.Printf("page %4d:  %s\n", id, hex.EncodeToString(sum[:]))
		}
	}
	return nil
}

// BenchCmd runs a fetch/new/unpin mix through a buffer pool and reports the
// pool counters.
type BenchCmd struct {
	Path     string `name:"path" short:"p" required:"" help:"Database file path" type:"path"`
	Pool     int    `name:"pool" default:"64" help:"Buffer pool size in frames"`
	Ops      int    `name:"ops" default:"10000" help:"Number of operations"`
	Replacer string `name:"replacer" default:"clock" enum:"clock,lru" help:"Eviction policy"`
	Seed     int64  `name:"seed" default:"1" help:"Workload seed"`
}

func (c *BenchCmd) Run() error {
	fm, err := disk.NewFileManager(c.Path, util.DefaultOptions())
	if err != nil {
		return err
	}
	defer fm.Close()

	pool := buffer.NewBufferPoolManager(fm, c.Pool, util.ReplacerPolicy(c.Replacer))
	rng := rand.New(rand.NewSource(c.Seed))

	allocated := fm.Size() / util.PageSize
	start := time.Now()
	for i := 0; i < c.Ops; i++ {
		if allocated == 0 || rng.Intn(10) == 0 {
			p, id, err := pool.NewPage()
			if err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
			allocated = int64(id) + 1
			pool.UnpinPage(p.ID(), true)
			continue
		}

		id := util.PageID(rng.Int63n(allocated))
		p, err := pool.FetchPage(id)
		if err != nil {
			return fmt.Errorf("op %d: fetch page %d: %w", i, id, err)
		}
		dirty := rng.Intn(4) == 0
		if dirty {
			p.WLatch()
			p.Data[rng.Intn(util.PageSize)] = byte(i)
			p.WUnlatch()
		}
		pool.UnpinPage(id, dirty)
	}
	if err := pool.FlushAllPages(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	stats := pool.Stats()
	fmt.Printf("ops:        %d in %s (%.0f ops/s)\n", c.Ops, elapsed, float64(c.Ops)/elapsed.Seconds())
	fmt.Printf("replacer:   %s, pool %d frames, %d pages\n", c.Replacer, c.Pool, allocated)
	fmt.Printf("hits:       %d\n", stats.Hits)
	fmt.Printf("misses:     %d\n", stats.Misses)
	fmt.Printf("evictions:  %d\n", stats.Evictions)
	fmt.Printf("flushes:    %d\n", stats.Flushes)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("framedb %s (page size %d)\n", version, util.PageSize)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("framedb"),
		kong.Description("framedb - page cache and storage file tooling"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	format := logging.FormatText
	if CLI.JSONLogs {
		format = logging.FormatJSON
	}
	logging.InitLogger(CLI.LogLevel, format)

	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
