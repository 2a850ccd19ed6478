package orchestrator

import "git.home.luguber.info/inful/pillarsite/internal/planner"

// Progress is the run counter reported after every unit of work.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Stage   string `json:"stage"`
}

// Observer receives progress updates. It is called on the run goroutine and must not block.
type Observer func(Progress)

// Stage descriptions shown to users.
const (
	StagePreparing     = "Preparing generation"
	StagePillarTopics  = "Analyzing keyword and generating pillar topics"
	StageClusterTopics = "Generating cluster topics for each pillar"
	StagePillarBodies  = "Writing pillar pages (3500-5000 words)"
	StageClusterBodies = "Writing cluster articles (2000+ words)"
	StageAssembly      = "Building static site structure"
	StageDelivery      = "Writing and publishing the site"
	StageDone          = "Site generation complete"
)

var stageDescriptions = map[planner.Stage]string{
	planner.StagePillarTopics:  StagePillarTopics,
	planner.StageClusterTopics: StageClusterTopics,
	planner.StagePillarBodies:  StagePillarBodies,
	planner.StageClusterBodies: StageClusterBodies,
}

// counter tracks progress for one run. Current never exceeds Total and only
// reaches it when the run completes.
type counter struct {
	p Progress
}

func newCounter(total int) *counter {
	return &counter{p: Progress{Total: total, Stage: StagePreparing}}
}

func (c *counter) stage(label string) Progress {
	c.p.Stage = label
	return c.p
}

func (c *counter) advance(units int) Progress {
	c.p.Current = min(c.p.Current+units, c.p.Total-1)
	return c.p
}

func (c *counter) finish() Progress {
	c.p.Current = c.p.Total
	c.p.Stage = StageDone
	return c.p
}
