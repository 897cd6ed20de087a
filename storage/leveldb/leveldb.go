// Package leveldb is the durable hostiface.Storage: a goleveldb index keyed
// by height for point lookups and range scans, backed by a small
// memory-mapped write-ahead log so a confirmed commit is fsync'd to disk
// before PutConfirmed returns, the same durability-before-acknowledge shape
// the teacher's own chain database commits blocks under.
package leveldb

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/syndtr/goleveldb/leveldb"

	scommon "github.com/polybase-io/solid/common"
	solid "github.com/polybase-io/solid/consensus/solid"
	"github.com/polybase-io/solid/hostiface"
)

// walSlotSize is the fixed slot size of one WAL entry: a 4-byte length
// prefix followed by the CBOR-encoded record (height, hash and manifest
// fields), capped generously so a single mmap segment holds a predictable
// number of slots; walSlotCount is the number of slots before wrapping.
const (
	walSlotSize  = 4096
	walSlotCount = 4096
)

type record struct {
	Height uint64
	Hash   []byte
	LastProposalHash []byte
	Skips            uint64
	LeaderID         []byte
	Peers            [][]byte
	Txns             []byte
}

// Store is a durable Storage backed by goleveldb plus an mmap'd WAL.
type Store struct {
	mu sync.Mutex

	db *leveldb.DB

	walFile *os.File
	walMap  mmap.MMap
	walPos  int // next free slot index, wraps modulo walSlotCount

	highest uint64
	hasAny  bool
}

var _ hostiface.Storage = (*Store)(nil)

// Open creates or reopens a Store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := leveldb.OpenFile(dir+"/index", nil)
	if err != nil {
		return nil, fmt.Errorf("leveldb: open index: %w", err)
	}

	walPath := dir + "/wal.log"
	f, err := os.OpenFile(walPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("leveldb: open wal: %w", err)
	}
	size := int64(walSlotSize * walSlotCount)
	if fi, err := f.Stat(); err == nil && fi.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			db.Close()
			return nil, fmt.Errorf("leveldb: grow wal: %w", err)
		}
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		db.Close()
		return nil, fmt.Errorf("leveldb: mmap wal: %w", err)
	}

	s := &Store{db: db, walFile: f, walMap: m}
	if err := s.loadHighest(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func heightKey(height uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, height)
	return b
}

func (s *Store) loadHighest() error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	if iter.Last() {
		s.highest = binary.BigEndian.Uint64(iter.Key())
		s.hasAny = true
	}
	return iter.Error()
}

// PutConfirmed appends the commit to the WAL (and syncs it) before writing
// the index entry. Nothing reads the WAL back: Open and LastConfirmed use
// the index alone, so a commit whose index write did not happen is not
// reported after a restart.
func (s *Store) PutConfirmed(height uint64, hash solid.Hash, m solid.ProposalManifest) error {
	rec := toRecord(height, hash, m)
	blob, err := cbor.Marshal(rec)
	if err != nil {
		return err
	}
	if len(blob)+4 > walSlotSize {
		return fmt.Errorf("leveldb: confirmed record too large for a wal slot (%d bytes)", len(blob))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.walPos % walSlotCount
	off := slot * walSlotSize
	binary.BigEndian.PutUint32(s.walMap[off:], uint32(len(blob)))
	copy(s.walMap[off+4:], blob)
	if err := s.walMap.Flush(); err != nil {
		return fmt.Errorf("leveldb: flush wal: %w", err)
	}
	s.walPos++

	if err := s.db.Put(heightKey(height), blob, nil); err != nil {
		return fmt.Errorf("leveldb: index put: %w", err)
	}
	if height > s.highest || !s.hasAny {
		s.highest = height
		s.hasAny = true
	}
	return nil
}

func (s *Store) GetConfirmed(height uint64) (solid.ProposalManifest, solid.Hash, bool, error) {
	blob, err := s.db.Get(heightKey(height), nil)
	if err == leveldb.ErrNotFound {
		return solid.ProposalManifest{}, solid.Hash{}, false, nil
	}
	if err != nil {
		return solid.ProposalManifest{}, solid.Hash{}, false, err
	}
	var rec record
	if err := cbor.Unmarshal(blob, &rec); err != nil {
		return solid.ProposalManifest{}, solid.Hash{}, false, err
	}
	m, h := fromRecord(rec)
	return m, h, true, nil
}

func (s *Store) LastConfirmed() (solid.Confirmed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasAny {
		return solid.Confirmed{}, nil
	}
	_, h, ok, err := s.GetConfirmed(s.highest)
	if err != nil || !ok {
		return solid.Confirmed{}, err
	}
	return solid.Confirmed{Hash: h, Height: s.highest}, nil
}

func (s *Store) Close() error {
	var errs []error
	if s.walMap != nil {
		if err := s.walMap.Unmap(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.walFile != nil {
		if err := s.walFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func toRecord(height uint64, hash solid.Hash, m solid.ProposalManifest) record {
	peers := m.Peers.Members()
	peerBytes := make([][]byte, len(peers))
	for i, p := range peers {
		peerBytes[i] = p.Bytes()
	}
	return record{
		Height:           height,
		Hash:             hash.Bytes(),
		LastProposalHash: m.LastProposalHash.Bytes(),
		Skips:            m.Skips,
		LeaderID:         m.LeaderID.Bytes(),
		Peers:            peerBytes,
		Txns:             m.Txns,
	}
}

func fromRecord(rec record) (solid.ProposalManifest, solid.Hash) {
	peers := make([]solid.PeerID, len(rec.Peers))
	for i, p := range rec.Peers {
		peers[i] = scommon.BytesToPeerID(p)
	}
	m := solid.ProposalManifest{
		LastProposalHash: scommon.BytesToHash(rec.LastProposalHash),
		Skips:            rec.Skips,
		Height:           rec.Height,
		LeaderID:         scommon.BytesToPeerID(rec.LeaderID),
		Peers:            solid.NewPeerSet(peers...),
		Txns:             rec.Txns,
	}
	return m, scommon.BytesToHash(rec.Hash)
}
