package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"pkt.systems/pslog"
	"pkt.systems/ralph/schema"
)

// AnswerRecord captures one question and the operator's answer.
type AnswerRecord struct {
	Index    int       `json:"index"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

// InterviewRecord captures an interview for diagnostics.
type InterviewRecord struct {
	SessionID    schema.SessionID `json:"session_id"`
	Agent        schema.AgentName `json:"agent"`
	Request      string           `json:"request"`
	ArtifactPath string           `json:"artifact_path"`
	PromptPath   string           `json:"prompt_path,omitempty"`
	Phase        string           `json:"phase"`
	Answers      []AnswerRecord   `json:"answers,omitempty"`
	Tail         []string         `json:"transcript_tail,omitempty"`
	ExitCode     *int             `json:"exit_code,omitempty"`
	Error        string           `json:"error,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Store persists interview records to disk.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Dir returns the directory records are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the record path for a session.
func (s *Store) Path(id schema.SessionID) string {
	name := sanitize(string(id))
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+".json")
}

// Load reads an interview record from disk.
func (s *Store) Load(id schema.SessionID) (InterviewRecord, bool, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.debug("interview record miss", "session", id)
			return InterviewRecord{}, false, nil
		}
		s.warn("interview record load failed", "session", id, "err", err)
		return InterviewRecord{}, false, err
	}
	var record InterviewRecord
	if err := json.Unmarshal(data, &record); err != nil {
		s.warn("interview record load failed", "session", id, "err", err)
		return InterviewRecord{}, false, err
	}
	return record, true, nil
}

// Save writes an interview record, replacing any previous version atomically.
func (s *Store) Save(record InterviewRecord) error {
	path := s.Path(record.SessionID)
	fail := func(err error) error {
		s.warn("interview record save failed", "session", record.SessionID, "err", err)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fail(err)
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fail(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "interview-*.json")
	if err != nil {
		return fail(err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if s.log != nil {
		s.log.Trace("interview record saved", "session", record.SessionID, "phase", record.Phase, "answers", len(record.Answers))
	}
	return nil
}

func (s *Store) debug(msg string, kv ...any) {
	if s.log != nil {
		s.log.Debug(msg, kv...)
	}
}

func (s *Store) warn(msg string, kv ...any) {
	if s.log != nil {
		s.log.Warn(msg, kv...)
	}
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
