package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"clawboard-backend/chain"
	"clawboard-backend/mcp"
	"clawboard-backend/middleware/indexer"
	ixstore "clawboard-backend/storage/index"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type config struct {
	RPCURL         string
	FactoryAddress string
	ChainID        int64
	DeployBlock    uint64
	StoreDriver    string
	IndexFile      string
	PGDSN          string
	MaxBlockRange  uint64
	AwaitTimeout   time.Duration
	MetricsAddr    string
}

func loadConfig() config {
	chainID := int64(8453) // Base mainnet
	if raw := os.Getenv("MCP_CHAIN_ID"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			chainID = v
		}
	}

	deployBlock := uint64(0)
	if raw := os.Getenv("MCP_DEPLOY_BLOCK"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			deployBlock = v
		}
	}

	maxRange := uint64(0)
	if raw := os.Getenv("MCP_SYNC_MAX_BLOCKS"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil && v > 0 {
			maxRange = v
		}
	}

	awaitTimeout := time.Duration(0)
	if raw := os.Getenv("MCP_AWAIT_TIMEOUT_SEC"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			awaitTimeout = time.Duration(v) * time.Second
		}
	}

	return config{
		RPCURL:         os.Getenv("MCP_RPC_URL"),
		FactoryAddress: os.Getenv("MCP_FACTORY_ADDRESS"),
		ChainID:        chainID,
		DeployBlock:    deployBlock,
		StoreDriver:    envDefault("MCP_STORE_DRIVER", "file"), // file | postgres
		IndexFile:      os.Getenv("MCP_INDEX_FILE"),
		PGDSN:          os.Getenv("MCP_PG_DSN"),
		MaxBlockRange:  maxRange,
		AwaitTimeout:   awaitTimeout,
		MetricsAddr:    os.Getenv("MCP_METRICS_ADDR"),
	}
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfg := loadConfig()
	if cfg.RPCURL == "" {
		log.Fatal("MCP_RPC_URL required")
	}
	if cfg.FactoryAddress == "" {
		log.Fatal("MCP_FACTORY_ADDRESS required")
	}

	ctx := context.Background()

	reg, err := chain.NewRegistry(cfg.FactoryAddress, cfg.ChainID, cfg.DeployBlock)
	if err != nil {
		log.Fatalf("invalid registry: %v", err)
	}

	source, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatalf("failed to connect to RPC: %v", err)
	}

	identity := ixstore.Identity{
		FactoryAddress: reg.FactoryAddress.Hex(),
		ChainID:        cfg.ChainID,
		DeployBlock:    cfg.DeployBlock,
	}

	var store ixstore.Store
	switch cfg.StoreDriver {
	case "postgres":
		if cfg.PGDSN == "" {
			log.Fatal("MCP_PG_DSN required when MCP_STORE_DRIVER=postgres")
		}
		store, err = ixstore.NewPGStore(ctx, cfg.PGDSN, identity)
	default:
		path := cfg.IndexFile
		if path == "" {
			path = ixstore.DefaultFilePath(cfg.ChainID)
		}
		store = ixstore.NewFileStore(path, identity)
	}
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	defer store.Close()

	opts := indexer.Options{
		MaxBlockRange: cfg.MaxBlockRange,
		AwaitTimeout:  cfg.AwaitTimeout,
	}
	ix, err := indexer.New(ctx, source, reg, store, opts)
	if err != nil {
		log.Fatalf("failed to init indexer: %v", err)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("metrics listener stopped: %v", err)
			}
		}()
	}

	mcpServer := mcp.NewMCPServer(ix)

	log.Printf("Clawboard MCP server starting (driver=%s chain=%d factory=%s)", cfg.StoreDriver, cfg.ChainID, cfg.FactoryAddress)

	if err := server.ServeStdio(mcpServer.GetMCPServer()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
