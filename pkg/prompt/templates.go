// Package prompt composes the per-turn guidance sent to navigating
// models. The model's baseline identity lives at the endpoint/model
// level; everything positional — experiment id, current position, the
// versioned strategy template — is rebuilt here every turn because the
// model is assumed to have no memory across turns.
package prompt

import (
	"sort"

	"github.com/mazebench/mazebench/pkg/models"
)

// promptV1 is the baseline navigation instruction set.
const promptV1 = `## Task
You are navigating a rectangular tile maze. You cannot see the whole maze;
after every move you receive the tiles visible in straight lines from your
new position. Tile types are EMPTY (walkable), WALL (blocks movement), and
GOAL (the target).

Navigate to the GOAL tile using the movement tools. Coordinates grow east
(x) and south (y): move_north decreases y, move_south increases y,
move_east increases x, move_west decreases x.

A failed move into a wall keeps you in place and reports the blocking
tile. The recall tool returns tiles you have already observed, but it has
a cooldown measured in moves.`

// promptV2 adds systematic exploration guidance on top of the baseline.
const promptV2 = `## Task
You are navigating a rectangular tile maze. You cannot see the whole maze;
after every move you receive the tiles visible in straight lines from your
new position. Tile types are EMPTY (walkable), WALL (blocks movement), and
GOAL (the target).

Navigate to the GOAL tile using the movement tools. Coordinates grow east
(x) and south (y): move_north decreases y, move_south increases y,
move_east increases x, move_west decreases x.

## Strategy
- Explore systematically. Prefer unvisited directions over backtracking.
- A failed move into a wall keeps you in place and reports the blocking
  tile. Do not retry a direction that just reported WALL.
- If you see the GOAL tile in your observations, move straight toward it.
- Use recall when you are unsure where you have been; it returns tiles you
  already observed. Recall has a cooldown measured in moves, so spend it
  deliberately.
- If every direction is blocked, backtrack to the last position that had
  an unexplored exit.`

// versions maps each published prompt_version to its template body.
var versions = map[string]string{
	"v1": promptV1,
	"v2": promptV2,
}

// Resolve returns the template body for a prompt version. Unknown
// versions fail with CONFIG_MISSING, surfacing at admission or first
// turn rather than mid-experiment.
func Resolve(version string) (string, error) {
	body, ok := versions[version]
	if !ok {
		return "", models.Classifiedf(models.ErrorKindConfigMissing,
			"unknown prompt_version %q (known: %v)", version, Versions())
	}
	return body, nil
}

// Versions lists the published prompt versions in sorted order.
func Versions() []string {
	out := make([]string, 0, len(versions))
	for v := range versions {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
