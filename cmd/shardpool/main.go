package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/alecthomas/kong"

	"github.com/sibexico/ShardPool/storage"
)

var CLI struct {
	LogLevel string `help:"Log level." default:"info" enum:"debug,info,warn,error"`

	Bench      BenchCmd      `cmd:"" help:"Run a synthetic workload against a parallel buffer pool."`
	InitConfig InitConfigCmd `cmd:"" name:"init-config" help:"Write a default configuration file."`
}

// BenchCmd drives a mixed new/fetch/unpin workload across the shards and
// reports aggregate metrics
type BenchCmd struct {
	Config      string `help:"Path to a JSON configuration file." type:"path"`
	Instances   uint32 `help:"Number of pool shards." default:"4"`
	PoolSize    uint32 `help:"Frames per shard." default:"128"`
	DataDir     string `help:"Directory for data files." type:"path" default:"./bench-data"`
	DiskMode    string `help:"Disk access mode." default:"file" enum:"file,mmap"`
	Compression string `help:"Page compression." default:"none" enum:"none,snappy,lz4"`
	Checksums   bool   `help:"Verify page checksums on read."`
	Workers     int    `help:"Concurrent workers." default:"8"`
	Ops         int    `help:"Operations per worker." default:"10000"`
	Seed        int64  `help:"Workload seed." default:"1"`
}

func (c *BenchCmd) Run(logger *slog.Logger) error {
	var config *storage.Config
	if c.Config != "" {
		loaded, err := storage.LoadConfigFromFile(c.Config)
		if err != nil {
			return err
		}
		config = loaded
	} else {
		config = storage.DefaultConfig()
		config.NumInstances = c.Instances
		config.PoolSizePerInstance = c.PoolSize
		config.DataDirectory = c.DataDir
		config.DiskMode = c.DiskMode
		config.Compression = c.Compression
		config.Checksums = c.Checksums
		config.LogLevel = CLI.LogLevel
	}

	pool, diskManager, err := storage.NewParallelBufferPoolFromConfig(config, storage.NewNoopLogManager())
	if err != nil {
		return err
	}
	defer diskManager.Close()

	logger.Info("starting benchmark",
		slog.Int("workers", c.Workers),
		slog.Int("ops_per_worker", c.Ops),
		slog.Uint64("pool_frames", uint64(pool.GetPoolSize())))

	// Seed the pool with pages the workers can fetch
	var seeded []storage.PageID
	for i := uint32(0); i < pool.GetPoolSize(); i++ {
		page, err := pool.NewPage()
		if err != nil {
			break
		}
		pageId := page.GetPageId()
		seeded = append(seeded, pageId)
		pool.UnpinPage(pageId, false)
	}
	if len(seeded) == 0 {
		return fmt.Errorf("failed to seed any pages")
	}

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < c.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(c.Seed + int64(worker)))
			for op := 0; op < c.Ops; op++ {
				pageId := seeded[rng.Intn(len(seeded))]
				page, err := pool.FetchPage(pageId)
				if err != nil {
					continue
				}
				dirty := rng.Intn(4) == 0
				if dirty {
					data := page.GetData()
					data[rng.Intn(storage.PageSize)] = byte(op)
				}
				pool.UnpinPage(pageId, dirty)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	pool.FlushAllPages()

	snapshot := pool.MetricsSnapshot()
	totalOps := c.Workers * c.Ops
	logger.Info("benchmark complete",
		slog.Duration("elapsed", elapsed),
		slog.Float64("ops_per_sec", float64(totalOps)/elapsed.Seconds()),
		slog.Uint64("cache_hits", snapshot.CacheHits),
		slog.Uint64("cache_misses", snapshot.CacheMisses),
		slog.Float64("cache_hit_rate", snapshot.CacheHitRate()),
		slog.Uint64("page_evictions", snapshot.PageEvictions),
		slog.Uint64("dirty_page_flushes", snapshot.DirtyPageFlushes),
	)

	return nil
}

// InitConfigCmd writes a default configuration file
type InitConfigCmd struct {
	Path string `arg:"" help:"Destination path." type:"path" default:"shardpool.json"`
}

func (c *InitConfigCmd) Run(logger *slog.Logger) error {
	config := storage.DefaultConfig()
	if err := config.SaveToFile(c.Path); err != nil {
		return err
	}
	logger.Info("wrote default configuration", slog.String("path", c.Path))
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("shardpool"),
		kong.Description(fmt.Sprintf("Sharded LRU buffer pool storage core (page size %d)", storage.PageSize)),
		kong.UsageOnError(),
	)

	logger := storage.NewLogger(CLI.LogLevel)
	ctx.FatalIfErrorf(ctx.Run(logger))
}
