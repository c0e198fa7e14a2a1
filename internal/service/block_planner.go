package service

import (
	"math/rand"
	"sync"
	"time"

	"github.com/mnuel1/spacio-backend/internal/models"
)

// maxBlockFloor is the smallest block size the planner peels once more than this remains.
const maxBlockFloor = 3

// BlockPlanner splits a subject's weekly hours into contiguous teaching blocks.
type BlockPlanner struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewBlockPlanner builds a planner. A nil rng is seeded from the clock.
func NewBlockPlanner(rng *rand.Rand) *BlockPlanner {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &BlockPlanner{rng: rng}
}

// PlanBlocks returns lecture blocks followed by lab blocks.
func (p *BlockPlanner) PlanBlocks(lectureHours, labHours int) []models.Block {
	p.mu.Lock()
	defer p.mu.Unlock()

	blocks := make([]models.Block, 0, 4)
	blocks = append(blocks, p.split(models.RoomTypeLecture, lectureHours)...)
	blocks = append(blocks, p.split(models.RoomTypeLab, labHours)...)
	return blocks
}

func (p *BlockPlanner) split(kind models.RoomType, hours int) []models.Block {
	if hours <= 0 {
		return nil
	}
	if hours <= maxBlockFloor {
		return []models.Block{{Type: kind, Hours: hours}}
	}

	var blocks []models.Block
	for remaining := hours; remaining > 0; {
		floor := min(maxBlockFloor, remaining)
		size := max(floor, floor+p.rng.Intn(remaining-floor+1))
		blocks = append(blocks, models.Block{Type: kind, Hours: size})
		remaining -= size
	}
	return blocks
}
