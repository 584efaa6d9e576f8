package fsync

import (
	"fmt"
	"math/bits"
)

// A LevelSpec describes one physical level of the tree.
type LevelSpec struct {
	Role Role

	// Dirs lists the logical merge directions the level fuses, in the
	// order a request crosses them. 1D levels carry one entry; combined
	// and root levels carry {Horizontal, Vertical}.
	Dirs []Direction
}

// A TopologyPlan is the level schedule of a grid topology, bottom-up.
// Tree assembly and the offline request generator must agree on it;
// both consume the same plan.
//
// Excess levels of the larger dimension sit closest to the leaves as
// 1D nodes; once the dimensions match, combined 2D levels merge 2x2
// blocks, and the topmost combined level is the root.
type TopologyPlan struct {
	Width, Height int
	Levels        []LevelSpec
}

// PlanGrid computes the plan for a Width x Height grid of compute
// units. Both dimensions must be powers of two in [2, 32].
func PlanGrid(width, height int) (TopologyPlan, error) {
	if err := checkDim("width", width); err != nil {
		return TopologyPlan{}, err
	}
	if err := checkDim("height", height); err != nil {
		return TopologyPlan{}, err
	}

	plan := TopologyPlan{Width: width, Height: height}

	w, h := width, height
	for w > h {
		plan.Levels = append(plan.Levels, LevelSpec{
			Role: RoleHorizontal,
			Dirs: []Direction{Horizontal},
		})
		w /= 2
	}
	for h > w {
		plan.Levels = append(plan.Levels, LevelSpec{
			Role: RoleVertical,
			Dirs: []Direction{Vertical},
		})
		h /= 2
	}
	for w > 1 {
		role := RoleCombined
		if w == 2 {
			role = RoleRoot
		}
		plan.Levels = append(plan.Levels, LevelSpec{
			Role: role,
			Dirs: []Direction{Horizontal, Vertical},
		})
		w /= 2
		h /= 2
	}

	return plan, nil
}

func checkDim(name string, v int) error {
	if v < 2 || v > 32 || bits.OnesCount(uint(v)) != 1 {
		return fmt.Errorf(
			"%s must be a power of two in [2, 32], got %d", name, v)
	}
	return nil
}

// LogicalLevels returns the height of the logical binary tree.
func (p TopologyPlan) LogicalLevels() int {
	n := 0
	for _, l := range p.Levels {
		n += len(l.Dirs)
	}
	return n
}

// LogicalDirs returns the merge direction of every logical level,
// bottom-up.
func (p TopologyPlan) LogicalDirs() []Direction {
	var dirs []Direction
	for _, l := range p.Levels {
		dirs = append(dirs, l.Dirs...)
	}
	return dirs
}

// BaseLevel returns the absolute logical level at which physical level
// i starts.
func (p TopologyPlan) BaseLevel(i int) int {
	n := 0
	for _, l := range p.Levels[:i] {
		n += len(l.Dirs)
	}
	return n
}

// NumBarrierIDs is the default size of the per-node local register
// file: ids 0 and 1 for tree barriers by direction, 2 and 3 for
// neighbor-pair barriers.
const NumBarrierIDs = 4
