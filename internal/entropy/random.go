// Package entropy provides the random sources that drive every stochastic
// rule of the simulation: mutation, predation, shuffling and reproduction.
// All derived draws (integers, permutations) are built from Float64 so that a
// single injected source makes a run fully reproducible.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	mrand "math/rand"
	"net/http"
	"sync"
	"time"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

// Intn returns an integer in [0, n) derived from one draw.
func Intn(src Source, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Chance reports whether a draw falls below p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}

// Shuffle permutes n elements in place (Fisher–Yates) using swap.
func Shuffle(src Source, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := Intn(src, i+1)
		swap(i, j)
	}
}

// Seeded returns a deterministic source backed by math/rand.
func Seeded(seed int64) Source {
	return &seeded{rng: mrand.New(mrand.NewSource(seed))}
}

type seeded struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

func (s *seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Fixed always returns the same value.
type Fixed float64

func (f Fixed) Float64() float64 { return float64(f) }

// Sequence replays the given values in order, wrapping around at the end.
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequence creates a cycling source over values. An empty sequence yields 0.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Crypto draws from crypto/rand.
type Crypto struct{}

func (Crypto) Float64() float64 { return cryptoRandFloat() }

// Client provides true random numbers from random.org with a local pool.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client

	mu   sync.Mutex
	pool []float64
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: "https://api.random.org/json-rpc/4/invoke",
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Float64 returns a random float in [0, 1). Uses the pool, refilling from
// random.org when low. Falls back to crypto/rand on API failure.
func (c *Client) Float64() float64 {
	if c == nil {
		return cryptoRandFloat()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pool) < 10 {
		c.refill()
	}

	if len(c.pool) == 0 {
		return cryptoRandFloat()
	}

	val := c.pool[0]
	c.pool = c.pool[1:]
	return val
}

func (c *Client) refill() {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateDecimalFractions",
		"params": map[string]any{
			"apiKey":        c.apiKey,
			"n":             100,
			"decimalPlaces": 6,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		slog.Debug("random.org marshal failed", "error", err)
		return
	}

	resp, err := c.client.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Debug("random.org fetch failed", "error", err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Debug("random.org read failed", "error", err)
		return
	}

	var result struct {
		Result struct {
			Random struct {
				Data []float64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		slog.Debug("random.org parse failed", "error", err)
		return
	}

	if result.Error != nil {
		slog.Debug("random.org API error", "error", result.Error.Message)
		return
	}

	for _, v := range result.Result.Random.Data {
		// random.org may return exactly 1.0 after rounding to 6 places.
		if v >= 0 && v < 1 {
			c.pool = append(c.pool, v)
		}
	}
	slog.Debug("random.org pool refilled", "count", len(c.pool))
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		return 0.5
	}
	// 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// FromConfig picks the source for a run: random.org when a key is set,
// otherwise a seeded source, or crypto/rand when seed is zero.
func FromConfig(seed int64, randomOrgKey string) Source {
	if c := NewClient(randomOrgKey); c.Enabled() {
		return c
	}
	if seed != 0 {
		return Seeded(seed)
	}
	return Crypto{}
}
