package order

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const codePrefix = "ORD-"

// CodeGenerator issues order codes of the form ORD-<ULID>: a millisecond
// timestamp followed by 80 random bits, monotonic within one millisecond.
type CodeGenerator struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy *ulid.MonotonicEntropy
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (g *CodeGenerator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		return "", fmt.Errorf("generate order code: %w", err)
	}
	return codePrefix + id.String(), nil
}

// CodeTime extracts the issue time embedded in an order code.
func CodeTime(code string) (time.Time, error) {
	if !strings.HasPrefix(code, codePrefix) {
		return time.Time{}, fmt.Errorf("order code %q: missing prefix", code)
	}
	id, err := ulid.ParseStrict(strings.TrimPrefix(code, codePrefix))
	if err != nil {
		return time.Time{}, fmt.Errorf("order code %q: %w", code, err)
	}
	return ulid.Time(id.Time()), nil
}
