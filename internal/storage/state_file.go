package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"twapOracle/internal/model"
)

// FileStateStore keeps every pair's state in one local JSON file. Entries
// are keyed by chain and pair, so one file can serve several chains.
type FileStateStore struct {
	Path    string
	ChainID uint64

	mu sync.Mutex
}

type stateFile struct {
	Pairs map[string]model.OracleState `json:"pairs"`
}

func (s *FileStateStore) Load(_ context.Context, pair string) (model.OracleState, bool, error) {
	if s == nil || s.Path == "" {
		return model.OracleState{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return model.OracleState{}, false, err
	}
	state, ok := file.Pairs[stateKey(s.ChainID, pair)]
	return state, ok, nil
}

func (s *FileStateStore) Save(_ context.Context, state model.OracleState) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if state.Pair == "" {
		return fmt.Errorf("state pair required")
	}
	if state.ChainID == 0 {
		state.ChainID = s.ChainID
	}
	if state.ChainID != s.ChainID {
		return fmt.Errorf("state chain %d does not match store chain %d", state.ChainID, s.ChainID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}
	file.Pairs[stateKey(s.ChainID, state.Pair)] = state

	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (s *FileStateStore) read() (stateFile, error) {
	file := stateFile{Pairs: make(map[string]model.OracleState)}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return file, nil
		}
		return file, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse state: %w", err)
	}
	if file.Pairs == nil {
		file.Pairs = make(map[string]model.OracleState)
	}
	return file, nil
}

func stateKey(chainID uint64, pair string) string {
	return strconv.FormatUint(chainID, 10) + ":" + strings.ToLower(pair)
}
