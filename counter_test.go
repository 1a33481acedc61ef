package ledgertail

import (
	"context"
	"fmt"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
)

func TestCounterLogsEverySoManySamples(t *testing.T) {
	g := NewGomegaWithT(t)

	var lines []string
	c := &Counter{
		Name:    "queries",
		LogRate: 2,
		Printf: func(format string, args ...any) {
			lines = append(lines, fmt.Sprintf(format, args...))
		},
	}

	c.Inc(1)
	c.Inc(2)
	c.Inc(3)

	g.Expect(c.Count()).To(Equal(uint64(6)))
	g.Expect(c.Samples()).To(Equal(uint64(3)))
	g.Expect(lines).To(HaveLen(1))
	g.Expect(lines[0]).To(ContainSubstring(`"name": "queries"`))
	g.Expect(lines[0]).To(ContainSubstring(`"counts": 3`))

	c.Inc(4)
	g.Expect(lines).To(HaveLen(2))
	g.Expect(lines[1]).To(ContainSubstring(`"counts": 10`))
	g.Expect(lines[1]).To(ContainSubstring(`"delta": 7`))
}

func TestCounterDefaultLogRate(t *testing.T) {
	g := NewGomegaWithT(t)

	lines := 0
	c := &Counter{
		Name:   "records",
		Printf: func(string, ...any) { lines++ },
	}

	for i := 0; i < DefaultLogRate; i++ {
		c.Inc(1)
	}
	g.Expect(lines).To(Equal(1))
}

func TestCounterDefaultLogRateFromEnvironment(t *testing.T) {
	g := NewGomegaWithT(t)
	t.Setenv(envDefaultLogRate, "5")

	lines := 0
	c := &Counter{
		Name:   "records",
		Printf: func(string, ...any) { lines++ },
	}

	for i := 0; i < 10; i++ {
		c.Inc(1)
	}
	g.Expect(lines).To(Equal(2))
}

func TestCounterIgnoresBadEnvironmentValue(t *testing.T) {
	g := NewGomegaWithT(t)
	t.Setenv(envDefaultLogRate, "0")

	lines := 0
	c := &Counter{
		Name:   "records",
		Printf: func(string, ...any) { lines++ },
	}

	for i := 0; i < DefaultLogRate; i++ {
		c.Inc(1)
	}
	g.Expect(lines).To(Equal(1))
}

func TestReaderFeedsCounters(t *testing.T) {
	g := NewGomegaWithT(t)
	fsys := afero.NewMemMapFs()
	g.Expect(afero.WriteFile(fsys, "ledger", pattern(25), 0644)).To(Succeed())

	discard := func(string, ...any) {}
	counters := Counters{
		LengthQueries: &Counter{Name: "length_queries", LogRate: 1, Printf: discard},
		Records:       &Counter{Name: "records", LogRate: 1, Printf: discard},
		WaitRounds:    &Counter{Name: "wait_rounds", LogRate: 1, Printf: discard},
	}

	r, err := Open(
		"ledger", 10,
		WithFs(fsys),
		WithPollInterval(10*time.Millisecond),
		WithCounters(counters),
	)
	g.Expect(err).ToNot(HaveOccurred())
	defer r.Close()

	for i := 0; i < 2; i++ {
		_, err := r.Next(context.Background())
		g.Expect(err).ToNot(HaveOccurred())
	}
	g.Expect(counters.Records.Count()).To(Equal(uint64(2)))
	g.Expect(counters.LengthQueries.Count()).To(BeZero())

	// The third record does not exist; the reader polls and waits.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = r.Next(ctx)
	g.Expect(err).To(MatchError(context.DeadlineExceeded))

	g.Expect(counters.LengthQueries.Count()).To(BeNumerically(">=", 1))
	g.Expect(counters.WaitRounds.Count()).To(BeNumerically(">=", 1))
}
