package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Eleven711/ledgersync/acquire"
	"github.com/Eleven711/ledgersync/crypto"
	"github.com/Eleven711/ledgersync/ledger"
	"github.com/Eleven711/ledgersync/ledgerproto"
	"github.com/Eleven711/ledgersync/libs/log"
	tmsync "github.com/Eleven711/ledgersync/libs/sync"
	"github.com/Eleven711/ledgersync/p2p"
	"github.com/Eleven711/ledgersync/shamap"
	"github.com/Eleven711/ledgersync/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the ledger acquisition daemon",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().String("home", ".ledgersyncd", "directory for config and the node store")
	startCmd.Flags().String("log-level", log.LogLevelInfo, "log level: debug, info, error, none")
	startCmd.Flags().String("log-format", log.LogFormatPlain, "log format: plain, json, stdlib")
	startCmd.Flags().String("debug-hash", "", "ledger hash to enable debug logging for, leaving everything else at log-level")
	startCmd.Flags().Duration("retry-interval", 3*time.Second, "how often an acquisition without progress retries its peers")
	startCmd.Flags().String("peers-file", "", "TOML file listing known peers to dial at startup")
	startCmd.Flags().String("audit-dsn", "", "Postgres DSN for the completion audit log; empty disables it")
	startCmd.Flags().String("status-addr", "", "address to serve the JSON status endpoint on; empty disables it")
}

// peerSeedFile is the shape of the --peers-file TOML document: a flat
// list of peers to dial eagerly at startup, keyed by the identity they
// announce themselves under.
type peerSeedFile struct {
	Peers []struct {
		ID   string `toml:"id"`
		Addr string `toml:"addr"`
	} `toml:"peers"`
}

// fileSeedDialer implements acquire.Dialer by parsing a TOML peers file
// and dialing every entry in it, so Service's OnStart has something
// transport-shaped to call without knowing about cobra flags or TOML.
// Dialing a long peers file can take a while; closer lets a concurrent
// Close abort the remainder of that loop instead of racing OnStop.
// Close only stops that loop: it does not close the connections already
// dialed into peerSet.
type fileSeedDialer struct {
	path    string
	peerSet *p2p.WSPeerSet
	logger  log.Logger
	closer  *tmsync.Closer
}

func newFileSeedDialer(path string, peerSet *p2p.WSPeerSet, logger log.Logger) *fileSeedDialer {
	return &fileSeedDialer{path: path, peerSet: peerSet, logger: logger, closer: tmsync.NewCloser()}
}

func (d *fileSeedDialer) DialSeeds(_ context.Context) error {
	if d.path == "" {
		return nil
	}
	var seeds peerSeedFile
	if _, err := toml.DecodeFile(d.path, &seeds); err != nil {
		return fmt.Errorf("parsing peers file: %w", err)
	}
	for _, seed := range seeds.Peers {
		select {
		case <-d.closer.Done():
			return nil
		default:
		}
		peer, err := p2p.DialWSPeer(p2p.ID(seed.ID), seed.Addr)
		if err != nil {
			d.logger.Error("dialing seed peer", "id", seed.ID, "addr", seed.Addr, "err", err)
			continue
		}
		d.peerSet.Add(peer)
		d.logger.Info("dialed seed peer", "id", seed.ID, "addr", seed.Addr)
	}
	return nil
}

func (d *fileSeedDialer) Close() error {
	d.closer.Close()
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	logger, err := log.NewDefaultLogger(viper.GetString("log-format"), viper.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}

	if debugHashHex := viper.GetString("debug-hash"); debugHashHex != "" {
		debugHash, err := crypto.HashFromHex(debugHashHex)
		if err != nil {
			return fmt.Errorf("parsing debug-hash: %w", err)
		}
		allow, err := log.AllowLevel(viper.GetString("log-level"))
		if err != nil {
			return err
		}
		logger = log.NewFilter(logger, allow, log.AllowDebugWith("hash", debugHash))
	}

	home := viper.GetString("home")
	if err := os.MkdirAll(home, 0o700); err != nil {
		return fmt.Errorf("creating home directory: %w", err)
	}

	nodeStore, err := store.OpenLevelDBStore("ledgersync", home)
	if err != nil {
		return fmt.Errorf("opening node store: %w", err)
	}
	defer nodeStore.Close()

	pathIndex, err := store.OpenPathIndex("ledgersync-paths", home)
	if err != nil {
		return fmt.Errorf("opening path index: %w", err)
	}
	defer pathIndex.Close()

	identity, err := p2p.NewIdentity()
	if err != nil {
		return fmt.Errorf("generating node identity: %w", err)
	}
	logger.Info("node identity", "id", identity.ID())

	peers := p2p.NewWSPeerSet()

	metrics := acquire.NopMetrics()
	registry := acquire.NewRegistry(peers, nodeStore, pathIndex, viper.GetDuration("retry-interval"), logger, metrics)
	// router is ready to dispatch GetLedger/LedgerData envelopes as soon
	// as a transport hands them to it; wiring in a real one is left to
	// whatever embeds this daemon into a full node.
	router := acquire.NewRouter(registry, &localContentHandler{store: nodeStore, pathIndex: pathIndex}, logger)

	if dsn := viper.GetString("audit-dsn"); dsn != "" {
		auditLog, err := store.OpenAuditLog(dsn)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer auditLog.Close()
		registry.SetCompletionRecorder(auditLog)
	}

	dialer := newFileSeedDialer(viper.GetString("peers-file"), peers, logger)
	daemon := acquire.NewService(registry, router, dialer, logger)

	group, groupCtx := errgroup.WithContext(cmd.Context())
	if err := daemon.Start(groupCtx); err != nil {
		return fmt.Errorf("starting acquisition service: %w", err)
	}
	defer daemon.Wait()

	if statusAddr := viper.GetString("status-addr"); statusAddr != "" {
		server := newStatusServer(statusAddr, registry)
		group.Go(func() error {
			logger.Info("serving status endpoint", "addr", statusAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			return server.Close()
		})
	}

	logger.Info("ledgersyncd started", "home", home)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-groupCtx.Done():
	}
	logger.Info("ledgersyncd shutting down")
	if err := daemon.Stop(); err != nil {
		logger.Error("stopping acquisition service", "err", err)
	}
	if err := group.Wait(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// newStatusServer serves a tiny JSON introspection endpoint over HTTP,
// the same shape of admin surface a real node would front with its own
// authentication; CORS is wide open here since this is meant for local
// tooling, not a public API.
func newStatusServer(addr string, registry *acquire.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/status/", func(w http.ResponseWriter, r *http.Request) {
		hashHex := r.URL.Path[len("/status/"):]
		h, err := crypto.HashFromHex(hashHex)
		if err != nil {
			http.Error(w, "bad hash", http.StatusBadRequest)
			return
		}
		la, ok := registry.Find(h)
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			json.NewEncoder(w).Encode(map[string]interface{}{"found": false})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"found":   true,
			"phase":   la.Phase(),
			"session": la.SessionID(),
		})
	})
	return &http.Server{
		Addr:    addr,
		Handler: cors.Default().Handler(mux),
	}
}

// localContentHandler serves this node's own acquired content back to
// peers that ask for it, reading straight from the shared node store and
// resolving by-path requests through the path index.
type localContentHandler struct {
	store     store.NodeStore
	pathIndex *store.PathIndex
}

func (h *localContentHandler) Header(hash crypto.Hash) ([]byte, bool) {
	return h.store.Get(hash)
}

func (h *localContentHandler) Node(ledgerHash crypto.Hash, itemType ledgerproto.ItemType, id shamap.NodeID) ([]byte, bool) {
	headerBytes, ok := h.store.Get(ledgerHash)
	if !ok {
		return nil, false
	}
	header, err := ledger.DecodeHeader(headerBytes)
	if err != nil {
		return nil, false
	}
	root := header.TxHash
	if itemType == ledgerproto.ItemTypeAsNode {
		root = header.AccountHash
	}
	content, ok := h.pathIndex.Lookup(root, id)
	if !ok {
		return nil, false
	}
	return h.store.Get(content)
}
