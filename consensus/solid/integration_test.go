package solid_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	scommon "github.com/polybase-io/solid/common"
	solid "github.com/polybase-io/solid/consensus/solid"
	"github.com/polybase-io/solid/internal/log"
	"github.com/polybase-io/solid/solidcrypto"
	"github.com/polybase-io/solid/transport/memory"
)

func intPeer(b byte) solid.PeerID {
	var p solid.PeerID
	p[31] = b
	return scommon.PeerID(p)
}

// wireCore runs core and pumps it against transport in both directions,
// exactly the way cmd/solidnode's pumpInbox/pumpOutbound do: inbound wire
// envelopes get decoded into InProposal/InAccept, and the core's own
// OutProposal/OutAccept get encoded back out over the wire. It returns a
// cancel func that stops every goroutine it started.
func wireCore(t *testing.T, core *solid.Core, tr *memory.Transport, logger *log.Logger) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 3)

	go func() {
		_ = core.Run(ctx)
		done <- struct{}{}
	}()

	go func() {
		defer func() { done <- struct{}{} }()
		for {
			select {
			case <-ctx.Done():
				return
			case env := <-tr.Inbox():
				switch env.Kind {
				case "proposal":
					m, err := solid.DecodeManifest(env.Payload)
					if err != nil {
						logger.Warn("dropped undecodable proposal", "err", err)
						continue
					}
					core.Submit(solid.InProposal{Manifest: m, Raw: env.Payload})
				case "accept":
					a, err := solid.DecodeAccept(env.Payload)
					if err != nil {
						logger.Warn("dropped undecodable accept", "err", err)
						continue
					}
					core.Submit(solid.InAccept{Accept: a})
				}
			}
		}
	}()

	go func() {
		defer func() { done <- struct{}{} }()
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, ev := range core.Drain() {
					switch e := ev.(type) {
					case solid.OutProposal:
						if err := tr.Broadcast(ctx, "proposal", solid.EncodeManifest(e.Manifest)); err != nil {
							logger.Warn("broadcast proposal failed", "err", err)
						}
					case solid.OutAccept:
						if err := tr.Unicast(ctx, e.To, "accept", solid.EncodeAccept(e.Accept)); err != nil {
							logger.Warn("unicast accept failed", "to", e.To, "err", err)
						}
					}
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
		<-done
		<-done
	}
}

// TestThreeNodesReachQuorumAndCommit wires three real Cores together over
// transport/memory, end to end through the exported wire codec (the same
// path cmd/solidnode drives), and checks that a real proposal reaches real
// quorum over a real transport: the first node to commit height 1 reports a
// commit whose hash is the hash of its manifest. Commits are not compared
// across nodes, so Agreement (Property 1) is not asserted here. Chain
// (Property 2) is covered at the single-node level by
// TestChainedCommitExtendsPriorHash,
// since which peer ends up collecting quorum for height 2 onward depends on
// leader rotation in a way this test doesn't pin down.
func TestThreeNodesReachQuorumAndCommit(t *testing.T) {
	A, B, C := intPeer(1), intPeer(2), intPeer(3)
	peers := solid.NewPeerSet(A, B, C)

	net := memory.NewNetwork()
	cfg := func(self solid.PeerID) solid.Config {
		return solid.Config{RoundTimeout: 150 * time.Millisecond, Peers: peers, SelfID: self, Digest: solidcrypto.SHA256}
	}

	coreA := solid.NewCore(cfg(A), log.New("test", "node-A"))
	coreB := solid.NewCore(cfg(B), log.New("test", "node-B"))
	coreC := solid.NewCore(cfg(C), log.New("test", "node-C"))

	subA, subB, subC := coreA.Subscribe(), coreB.Subscribe(), coreC.Subscribe()
	defer subA.Unsubscribe()
	defer subB.Unsubscribe()
	defer subC.Unsubscribe()

	stopA := wireCore(t, coreA, net.Join(A), log.New("test", "wire-A"))
	stopB := wireCore(t, coreB, net.Join(B), log.New("test", "wire-B"))
	stopC := wireCore(t, coreC, net.Join(C), log.New("test", "wire-C"))
	defer stopA()
	defer stopB()
	defer stopC()

	end := time.After(3 * time.Second)
	for {
		select {
		case c := <-subA.Chan():
			if c.Height == 1 {
				require.Equal(t, c.ProposalHash, c.Manifest.Hash(solidcrypto.SHA256))
				return
			}
		case c := <-subB.Chan():
			if c.Height == 1 {
				require.Equal(t, c.ProposalHash, c.Manifest.Hash(solidcrypto.SHA256))
				return
			}
		case c := <-subC.Chan():
			if c.Height == 1 {
				require.Equal(t, c.ProposalHash, c.Manifest.Hash(solidcrypto.SHA256))
				return
			}
		case <-end:
			t.Fatal("timed out waiting for a commit at height 1 over the real transport")
		}
	}
}

// TestTwoOfThreeNodesCommitDespiteOneNodeDown exercises Testable Property 6
// (liveness): with one of three peers never started at all (the strongest
// form of "crashed from genesis"), the surviving two still reach the
// strict-majority quorum (2 of 3) and commit without it.
func TestTwoOfThreeNodesCommitDespiteOneNodeDown(t *testing.T) {
	A, B, C := intPeer(1), intPeer(2), intPeer(3)
	peers := solid.NewPeerSet(A, B, C)

	net := memory.NewNetwork()
	cfg := func(self solid.PeerID) solid.Config {
		return solid.Config{RoundTimeout: 150 * time.Millisecond, Peers: peers, SelfID: self, Digest: solidcrypto.SHA256}
	}

	coreA := solid.NewCore(cfg(A), log.New("test", "node-A"))
	coreB := solid.NewCore(cfg(B), log.New("test", "node-B"))

	subA, subB := coreA.Subscribe(), coreB.Subscribe()
	defer subA.Unsubscribe()
	defer subB.Unsubscribe()

	// C never joins the network and never runs: a permanently down peer,
	// not merely a slow one.
	stopA := wireCore(t, coreA, net.Join(A), log.New("test", "wire-A"))
	stopB := wireCore(t, coreB, net.Join(B), log.New("test", "wire-B"))
	defer stopA()
	defer stopB()

	end := time.After(3 * time.Second)
	for {
		select {
		case c := <-subA.Chan():
			if c.Height == 1 {
				return
			}
		case c := <-subB.Chan():
			if c.Height == 1 {
				return
			}
		case <-end:
			t.Fatal("timed out waiting for a commit at height 1 with one peer permanently down")
		}
	}
}
