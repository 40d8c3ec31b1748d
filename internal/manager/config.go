package manager

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"diffusiond/internal/pipeline"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 16
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Backend pipeline.Backend
	Options pipeline.Options
	// LoadTimeout bounds Load; zero means no limit.
	LoadTimeout time.Duration
	// MaxQueueDepth bounds admitted requests, in-flight included.
	MaxQueueDepth int
	// GenerateTimeout bounds one generation; zero means no limit.
	GenerateTimeout time.Duration
	// TreatBlankAsFiltered maps all-black outputs to a safety block.
	TreatBlankAsFiltered bool
	Publisher            EventPublisher
	Logger               zerolog.Logger
	// Seed draws a seed when a request omits one; defaults to a uniform draw over [0, 2^32-1).
	Seed func() int64
}

// NewWithConfig constructs a Manager from ManagerConfig. The pipeline is not
// loaded until Load.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:         StateLoading,
		backend:       cfg.Backend,
		opts:          cfg.Options,
		loadTimeout:   cfg.LoadTimeout,
		genTimeout:    cfg.GenerateTimeout,
		blankFiltered: cfg.TreatBlankAsFiltered,
		publisher:     cfg.Publisher,
		log:           cfg.Logger,
		seed:          cfg.Seed,
		sem:           semaphore.NewWeighted(1),
	}
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	m.queueCh = make(chan struct{}, m.maxQueueDepth)
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.seed == nil {
		m.seed = randomSeed
	}
	return m
}

// randomSeed draws uniformly from [0, 2^32-1).
func randomSeed() int64 { return rand.Int64N(math.MaxUint32) }
