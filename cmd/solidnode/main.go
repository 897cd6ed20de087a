// Command solidnode runs a single Solid participant: it loads a config
// file, joins the configured peer mesh over wsnet, persists commits to
// leveldb, and drives a consensus/solid.Core until told to stop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	scommon "github.com/polybase-io/solid/common"
	"github.com/polybase-io/solid/config"
	solid "github.com/polybase-io/solid/consensus/solid"
	"github.com/polybase-io/solid/hostiface"
	"github.com/polybase-io/solid/internal/event"
	"github.com/polybase-io/solid/internal/log"
	"github.com/polybase-io/solid/solidcrypto"
	"github.com/polybase-io/solid/storage/leveldb"
	"github.com/polybase-io/solid/transport/wsnet"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "solidnode",
		Short: "Solid consensus node",
		Long:  "Leader-based BFT consensus core for Polybase, run as a standalone network participant.",
	}
	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var version = "0.1.0"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("solidnode v%s\n", version)
		},
	}
}

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the node",
		RunE:  runStart,
	}
	cmd.Flags().String("config", "./solid.toml", "path to config.toml")
	return cmd
}

func runStart(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfgFile, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := log.New("node", cfgFile.SelfID)

	identity, err := wsnet.GenerateIdentity()
	if err != nil {
		return fmt.Errorf("generate identity: %w", err)
	}

	digest, err := pickDigest(cfgFile.Digest)
	if err != nil {
		return err
	}

	return startNode(cmd.Context(), configPath, cfgFile, identity, digest, logger)
}

func pickDigest(name string) (solid.Digest, error) {
	switch name {
	case "", "sha256":
		return solidcrypto.SHA256, nil
	case "keccak256":
		return solidcrypto.Keccak256, nil
	default:
		return nil, fmt.Errorf("config: unrecognized digest %q", name)
	}
}

func buildPeerSet(cfgFile config.File, identity wsnet.Identity) (solid.PeerSet, solid.PeerID) {
	peers := make([]solid.PeerID, 0, len(cfgFile.Peers))
	for _, p := range cfgFile.Peers {
		peers = append(peers, scommon.HexToPeerID(p))
	}
	return solid.NewPeerSet(peers...), identity.PeerID()
}

func startNode(ctx context.Context, configPath string, cfgFile config.File, identity wsnet.Identity, digest solid.Digest, logger *log.Logger) error {
	store, err := leveldb.Open(filepath.Clean(cfgFile.DataDir))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	genesis, err := store.LastConfirmed()
	if err != nil {
		return fmt.Errorf("load last confirmed: %w", err)
	}

	peerSet, self := buildPeerSet(cfgFile, identity)

	core := solid.NewCore(solid.Config{
		RoundTimeout: cfgFile.RoundTimeout,
		Peers:        peerSet,
		SelfID:       self,
		Genesis:      genesis,
		Digest:       digest,
	}, logger)

	node := wsnet.NewNode(identity, logger)
	mux := http.NewServeMux()
	mux.Handle("/solid", node)
	server := &http.Server{Addr: cfgFile.ListenAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", "err", err)
		}
	}()
	defer server.Close()

	for _, addr := range cfgFile.Peers2 {
		if err := node.Dial(addr); err != nil {
			logger.Warn("dial failed", "addr", addr, "err", err)
		}
	}

	watcher, err := config.WatchRoundTimeout(configPath, cfgFile.RoundTimeout, logger, core.SetRoundTimeout)
	if err != nil {
		logger.Warn("round_timeout hot-reload unavailable", "err", err)
	} else {
		defer watcher.Close()
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commits := core.Subscribe()
	defer commits.Unsubscribe()

	go pumpInbox(runCtx, core, node.Inbox(), logger)
	go persistCommits(runCtx, commits, store, logger)
	go pumpOutbound(runCtx, core, node, logger)

	logger.Info("solidnode started", "self", self, "listen", cfgFile.ListenAddr)
	return core.Run(runCtx)
}

// pumpInbox relays wire envelopes into the core, decoding env.Payload by
// its Kind tag into the InProposal/InAccept the loop expects (spec §6
// "manifests and accepts arrive already deserialized"). A malformed
// envelope is logged and dropped rather than killing the pump, since one
// bad peer shouldn't take the node down.
func pumpInbox(ctx context.Context, core *solid.Core, inbox <-chan hostiface.Envelope, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-inbox:
			switch env.Kind {
			case "proposal":
				manifest, err := solid.DecodeManifest(env.Payload)
				if err != nil {
					logger.Warn("dropped undecodable proposal", "err", err)
					continue
				}
				core.Submit(solid.InProposal{Manifest: manifest, Raw: env.Payload})
			case "accept":
				accept, err := solid.DecodeAccept(env.Payload)
				if err != nil {
					logger.Warn("dropped undecodable accept", "err", err)
					continue
				}
				core.Submit(solid.InAccept{Accept: accept})
			default:
				logger.Warn("dropped envelope with unrecognized kind", "kind", env.Kind)
			}
		}
	}
}

// persistCommits writes every commit the core emits to durable storage, so
// a restart can resume from LastConfirmed instead of replaying the whole
// chain from peers.
func persistCommits(ctx context.Context, commits *event.Subscription[solid.Commit], store *leveldb.Store, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-commits.Chan():
			if err := store.PutConfirmed(c.Height, c.ProposalHash, c.Manifest); err != nil {
				logger.Error("persist commit failed", "height", c.Height, "err", err)
			}
		}
	}
}

// pumpOutbound drains the core's event queue and turns every event a peer
// needs to see into wire traffic: proposals go out to everyone, accepts go
// to the one peer that needs them to reach quorum. OutCommit isn't
// gossiped — every correct node derives its own commit locally once it has
// quorum on the same proposal, so re-sending it would just be redundant
// traffic. The remaining cases are host-local diagnostics (spec §6).
func pumpOutbound(ctx context.Context, core *solid.Core, node *wsnet.Node, logger *log.Logger) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ev := range core.Drain() {
				switch e := ev.(type) {
				case solid.OutProposal:
					payload := solid.EncodeManifest(e.Manifest)
					if err := node.Broadcast(ctx, "proposal", payload); err != nil {
						logger.Warn("broadcast proposal failed", "err", err)
					}
				case solid.OutAccept:
					payload := solid.EncodeAccept(e.Accept)
					if err := node.Unicast(ctx, e.To, "accept", payload); err != nil {
						logger.Warn("unicast accept failed", "to", e.To, "err", err)
					}
				case solid.OutCommit:
					// derived locally by every correct node; nothing to send.
				case solid.OutOutOfSync:
					logger.Warn("out of sync", "target_height", e.TargetHeight)
				case solid.OutOutOfDate:
					logger.Debug("dropped out-of-date proposal", "hash", e.Hash)
				case solid.OutDuplicate:
					logger.Debug("dropped duplicate proposal", "hash", e.Hash)
				}
			}
		}
	}
}
