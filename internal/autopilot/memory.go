package autopilot

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
)

const maxRecords = 50

// CycleRecord captures one completed generation as seen by the autopilot.
type CycleRecord struct {
	Generation      int     `json:"generation"`
	Environment     string  `json:"environment"`
	Alive           int     `json:"alive"`
	GreenAlleleFreq float64 `json:"green_allele_freq"`
	Level           string  `json:"level"`
	QuizCorrect     *bool   `json:"quiz_correct,omitempty"`
}

// Memory keeps learned quiz answers and recent cycle records across runs.
type Memory struct {
	mu      sync.Mutex
	Answers map[int]int   `json:"answers"` // question ID -> correct option
	Guesses map[int]int   `json:"guesses"` // question ID -> options already tried
	Records []CycleRecord `json:"records"`
}

// NewMemory returns an empty memory.
func NewMemory() *Memory {
	return &Memory{Answers: map[int]int{}, Guesses: map[int]int{}}
}

// LoadMemory reads the memory file from disk. Returns empty memory if not found.
func LoadMemory(path string) *Memory {
	mem := NewMemory()
	if path == "" {
		return mem
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("autopilot memory corrupted, starting fresh", "error", err)
		return NewMemory()
	}
	if mem.Answers == nil {
		mem.Answers = map[int]int{}
	}
	if mem.Guesses == nil {
		mem.Guesses = map[int]int{}
	}
	return mem
}

// Save writes the memory to disk.
func (m *Memory) Save(path string) error {
	m.mu.Lock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Answer returns the remembered correct option for a question.
func (m *Memory) Answer(questionID int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	option, ok := m.Answers[questionID]
	return option, ok
}

// Guess returns the next untried option for a question, cycling.
func (m *Memory) Guess(questionID, options int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if options <= 0 {
		return 0
	}
	tried := m.Guesses[questionID]
	m.Guesses[questionID] = tried + 1
	return tried % options
}

// Learn stores the revealed correct option for a question.
func (m *Memory) Learn(questionID, correct int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Answers[questionID] = correct
	delete(m.Guesses, questionID)
}

// Record adds a cycle record, trimming to maxRecords.
func (m *Memory) Record(r CycleRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}
