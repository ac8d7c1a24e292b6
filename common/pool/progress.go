package pool

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/projectdiscovery/clistats"
	"github.com/projectdiscovery/gologger"
)

const statsDisplayInterval = 5

// Progress receives queue depth and completion updates from a pool. Start is
// called once when the pool opens, with the number of requests queued so
// far; Grow reports later submissions and Advance terminal requests.
type Progress interface {
	Start(total int)
	Grow(n int)
	Advance()
	Stop()
}

// NopProgress is a Progress that discards every update.
type NopProgress struct{}

func (NopProgress) Start(total int) {}
func (NopProgress) Grow(n int)      {}
func (NopProgress) Advance()        {}
func (NopProgress) Stop()           {}

// statsProgress renders a periodic statistics line for the pool.
type statsProgress struct {
	description string
	stats       clistats.StatisticsClient
}

func (p *statsProgress) Start(total int) {
	stats, err := clistats.New()
	if err != nil {
		gologger.Warning().Msgf("Could not create statistics client: %s\n", err)
		return
	}
	stats.AddStatic("description", p.description)
	stats.AddStatic("startedAt", time.Now())
	stats.AddCounter("requests", 0)
	stats.AddCounter("total", uint64(total))
	if err := stats.Start(makePrintCallback(), time.Duration(statsDisplayInterval)*time.Second); err != nil {
		gologger.Warning().Msgf("Could not create statistic: %s\n", err)
		return
	}
	p.stats = stats
}

func (p *statsProgress) Grow(n int) {
	if p.stats == nil {
		return
	}
	p.stats.IncrementCounter("total", n)
}

func (p *statsProgress) Advance() {
	if p.stats == nil {
		return
	}
	p.stats.IncrementCounter("requests", 1)
}

func (p *statsProgress) Stop() {
	if p.stats == nil {
		return
	}
	p.stats.Stop()
}

func makePrintCallback() func(stats clistats.StatisticsClient) {
	builder := &strings.Builder{}
	return func(stats clistats.StatisticsClient) {
		builder.WriteRune('[')
		description, _ := stats.GetStatic("description")
		builder.WriteString(description.(string))
		builder.WriteString("] [")
		startedAt, _ := stats.GetStatic("startedAt")
		duration := time.Since(startedAt.(time.Time))
		builder.WriteString(clistats.FmtDuration(duration))
		builder.WriteRune(']')

		requests, _ := stats.GetCounter("requests")
		total, _ := stats.GetCounter("total")

		builder.WriteString(" | RPS: ")
		builder.WriteString(clistats.String(uint64(float64(requests) / duration.Seconds())))

		builder.WriteString(" | Requests: ")
		builder.WriteString(clistats.String(requests))
		builder.WriteRune('/')
		builder.WriteString(clistats.String(total))
		if total > 0 {
			builder.WriteRune(' ')
			builder.WriteRune('(')
			builder.WriteString(clistats.String(uint64(float64(requests) / float64(total) * 100.0)))
			builder.WriteRune('%')
			builder.WriteRune(')')
		}
		builder.WriteRune('\n')

		fmt.Fprintf(os.Stderr, "%s", builder.String())
		builder.Reset()
	}
}
