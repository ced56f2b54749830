package session

import (
	"strconv"
	"sync"

	"github.com/tradecouncil/tradecouncil/pkg/events"
	"github.com/tradecouncil/tradecouncil/pkg/models"
)

// Progress checkpoints. Analyst report commits carry no percentage of their
// own; the join barrier advances to pctAnalysts once all four are in.
const (
	pctValidated  = 5
	pctDispatched = 25
	pctAnalysts   = 40
	pctDebateDone = 55
	pctPlan       = 70
	pctTraderPlan = 85
	pctRiskDone   = 90
	pctDecision   = 95
	pctComplete   = 100
)

// progressTracker emits monotone progress events: a target below the
// current percentage is silently dropped, so parallel branches can report
// without ever moving the bar backwards.
type progressTracker struct {
	emitter events.Emitter

	mu      sync.Mutex
	current int
}

func newProgressTracker(emitter events.Emitter) *progressTracker {
	return &progressTracker{emitter: emitter}
}

func (p *progressTracker) set(target int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if target <= p.current {
		return
	}
	p.current = target
	// Emitted under the lock so concurrent branches cannot reorder events.
	p.emitter.Emit(events.Progress(strconv.Itoa(target)))
}

// sectionCommitted advances progress for a newly assigned report section.
func (p *progressTracker) sectionCommitted(section models.ReportSection) {
	switch section {
	case models.SectionInvestmentPlan:
		p.set(pctPlan)
	case models.SectionTraderInvestmentPlan:
		p.set(pctTraderPlan)
	case models.SectionFinalTradeDecision:
		p.set(pctDecision)
	}
}
