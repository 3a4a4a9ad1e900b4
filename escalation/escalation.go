// Package escalation turns accumulating staff flags into automatic
// termination. The engine is invoked synchronously after every flag
// mutation, the threshold check and the workflow it triggers are serialized
// per subject so two concurrent flags can never both fire it.
package escalation

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vielumine/vertigo/common"
)

var logger = common.GetFixedPrefixLogger("escalation")

var metricsTerminations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vertigo_escalation_terminations_total",
	Help: "Automatic terminations triggered by the flag threshold",
})

// State is where a subject sits relative to the flag threshold.
type State int

const (
	StateClear State = iota
	StateCautioned
	StateCritical
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateClear:
		return "clear"
	case StateCautioned:
		return "cautioned"
	case StateCritical:
		return "critical"
	case StateTerminated:
		return "terminated"
	}

	return "unknown"
}

// StateForCount bands an active flag count against the threshold. Terminated
// is self resetting, the workflow clears the flags so later observations land
// back on clear.
func StateForCount(count, threshold int) State {
	switch {
	case count <= 0:
		return StateClear
	case count >= threshold:
		return StateTerminated
	case count == threshold-1:
		return StateCritical
	default:
		return StateCautioned
	}
}

// RedisKeyTerminated marks a recently terminated subject, the platform layer
// uses it to suppress redundant events while the suspension lasts.
func RedisKeyTerminated(guildID, userID int64) string {
	return fmt.Sprintf("vertigo_terminated:%d:%d", guildID, userID)
}

const (
	lockTimeout = time.Second * 10
	lockTTL     = time.Minute
)

type flagKey struct {
	GuildID   int64
	SubjectID int64
}

// Termination is the outcome of one firing of the workflow. Errs collects
// the non fatal failures, the workflow never rolls back.
type Termination struct {
	GuildID   int64
	SubjectID int64
	ActorID   int64

	FlagCount    int
	FlagsCleared int
	SuspensionID int64

	Errs []error
}

// PartialFailure reports whether any best effort step failed.
func (t *Termination) PartialFailure() bool {
	return len(t.Errs) > 0
}
